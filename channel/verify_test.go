package channel

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/cellpay/spillman-sdk-go/types"
)

// 结算路径：只要双方签名有效，任何输出分配都接受

func TestSettlementAcceptsAnySplit(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)

	tests := []struct {
		name    string
		outputs []types.CellOutput
	}{
		{
			name: "对半分账（1001 进，500/500 出，手续费 1）",
			outputs: []types.CellOutput{
				{Capacity: 500 * unit, Lock: f.userLock()},
				{Capacity: 500 * unit, Lock: f.merchantLock()},
			},
		},
		{
			name: "全部给商户",
			outputs: []types.CellOutput{
				{Capacity: 1000 * unit, Lock: f.merchantLock()},
			},
		},
		{
			name: "三个输出",
			outputs: []types.CellOutput{
				{Capacity: 300 * unit, Lock: f.userLock()},
				{Capacity: 300 * unit, Lock: f.merchantLock()},
				{Capacity: 300 * unit, Lock: f.merchantLock()},
			},
		},
		{
			name: "商户容量低于最小占用也接受（结算不查输出结构）",
			outputs: []types.CellOutput{
				{Capacity: 990 * unit, Lock: f.userLock()},
				{Capacity: 10 * unit, Lock: f.merchantLock()},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := f.buildTx(0, tt.outputs, nil)
			f.attachWitness(t, tx, UnlockSettlement)
			require.NoError(t, f.verify(tx))
		})
	}
}

func TestSettlementRejectsTamperedSignature(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)
	outputs := []types.CellOutput{
		{Capacity: 500 * unit, Lock: f.userLock()},
		{Capacity: 500 * unit, Lock: f.merchantLock()},
	}

	// witness 内任何一个签名字节被翻转都必须认证失败
	offsets := []struct {
		name   string
		offset int
	}{
		{"商户签名首字节", 17},
		{"商户签名末字节", 17 + 64},
		{"用户签名首字节", 17 + 65},
		{"用户签名末字节", 17 + 65 + 64},
	}

	for _, tt := range offsets {
		t.Run(tt.name, func(t *testing.T) {
			tx := f.buildTx(0, outputs, nil)
			f.attachWitness(t, tx, UnlockSettlement)
			tx.Witnesses[0][tt.offset] ^= 0x01
			err := f.verify(tx)
			require.True(t, errors.Is(err, ErrAuthentication), "got %v", err)
		})
	}
}

func TestSettlementRejectsModifiedTransaction(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)
	tx := f.buildTx(0, []types.CellOutput{
		{Capacity: 500 * unit, Lock: f.userLock()},
		{Capacity: 500 * unit, Lock: f.merchantLock()},
	}, nil)
	f.attachWitness(t, tx, UnlockSettlement)

	// 签完之后把商户份额从 500 改成 501，消息随之改变
	tx.Outputs[1].Capacity = 501 * unit
	err := f.verify(tx)
	require.True(t, errors.Is(err, ErrAuthentication), "got %v", err)
}

func TestSettlementReplacedByHigherCommitment(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)

	// 承诺只增不减：同一通道先签 999 再签 1000，两份承诺都独立有效，
	// 旧承诺不会因为新承诺存在而失效，仲裁发生在账本层（同一输入只能花一次）
	for _, payment := range []uint64{999, 1000} {
		tx := f.buildTx(0, []types.CellOutput{
			{Capacity: (1000 - payment) * unit, Lock: f.userLock()},
			{Capacity: payment * unit, Lock: f.merchantLock()},
		}, nil)
		f.attachWitness(t, tx, UnlockSettlement)
		require.NoError(t, f.verify(tx))
	}
}

// 输入分组

func TestVerifyChannelInputGrouping(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)
	otherCell := types.CellWithData{
		Output: types.CellOutput{
			Capacity: 100 * unit,
			Lock:     f.userLock(),
		},
		OutPoint: types.OutPoint{TxHash: bytes.Repeat([]byte{0xEF}, 32), Index: 0},
	}

	t.Run("没有通道输入", func(t *testing.T) {
		tx := f.buildTx(0, []types.CellOutput{{Capacity: 99 * unit, Lock: f.userLock()}}, nil)
		err := f.env.Verify(tx, []types.CellWithData{otherCell}, f.lock)
		require.True(t, errors.Is(err, ErrChannelInputMissing), "got %v", err)
	})

	t.Run("两个通道输入", func(t *testing.T) {
		second := f.cell
		second.OutPoint.Index = 1
		tx := f.buildTx(0, []types.CellOutput{{Capacity: 2000 * unit, Lock: f.userLock()}}, nil)
		tx.Inputs = append(tx.Inputs, types.CellInput{PreviousOutput: second.OutPoint})
		f.attachWitness(t, tx, UnlockSettlement)
		err := f.env.Verify(tx, []types.CellWithData{f.cell, second}, f.lock)
		require.True(t, errors.Is(err, ErrMultipleChannelInputs), "got %v", err)
	})

	t.Run("通道输入 + 普通输入可以共存", func(t *testing.T) {
		tx := f.buildTx(0, []types.CellOutput{{Capacity: 1100 * unit, Lock: f.userLock()}}, nil)
		tx.Inputs = append(tx.Inputs, types.CellInput{PreviousOutput: otherCell.OutPoint})
		f.attachWitness(t, tx, UnlockSettlement)
		require.NoError(t, f.env.Verify(tx, []types.CellWithData{f.cell, otherCell}, f.lock))
	})
}

// 超时路径

// refundOutputs 标准退款输出：输出 0 用户拿走余额，输出 1 商户拿恰好最小占用
func (f *fixture) refundOutputs(fee uint64) []types.CellOutput {
	merchantOccupied := types.OccupiedCapacity(f.merchantLock(), nil, 0)
	return []types.CellOutput{
		{Capacity: f.cell.Output.Capacity - merchantOccupied - fee, Lock: f.userLock()},
		{Capacity: merchantOccupied, Lock: f.merchantLock()},
	}
}

func TestTimeoutMaturity(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)

	tests := []struct {
		name  string
		since uint64
		want  *Error
	}{
		{"未到期", 4999, ErrTimeoutNotReached},
		{"恰好到期", 5000, nil},
		{"超过到期", 6000, nil},
		{"无 since 约束", 0, ErrTimeoutNotReached},
		{"度量方式不同", types.SinceFlagTimestamp | 5000, ErrTimeoutNotReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := f.buildTx(tt.since, f.refundOutputs(unit/2), nil)
			f.attachWitness(t, tx, UnlockTimeout)
			err := f.verify(tx)
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
}

func TestTimeoutOutputShape(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)
	merchantOccupied := types.OccupiedCapacity(f.merchantLock(), nil, 0)

	tests := []struct {
		name    string
		outputs []types.CellOutput
		want    *Error
	}{
		{
			name:    "没有输出",
			outputs: nil,
			want:    ErrRefundOutputShape,
		},
		{
			name: "三个输出",
			outputs: []types.CellOutput{
				{Capacity: 300 * unit, Lock: f.userLock()},
				{Capacity: merchantOccupied, Lock: f.merchantLock()},
				{Capacity: 300 * unit, Lock: f.userLock()},
			},
			want: ErrRefundOutputShape,
		},
		{
			name: "输出 0 不是用户锁",
			outputs: []types.CellOutput{
				{Capacity: 1000 * unit, Lock: f.merchantLock()},
			},
			want: ErrUserLockMismatch,
		},
		{
			name: "输出 1 不是商户锁",
			outputs: []types.CellOutput{
				{Capacity: 500 * unit, Lock: f.userLock()},
				{Capacity: 500 * unit, Lock: f.userLock()},
			},
			want: ErrRefundOutputShape,
		},
		{
			name: "商户容量多一个 shannon",
			outputs: []types.CellOutput{
				{Capacity: 1001*unit - merchantOccupied - 1, Lock: f.userLock()},
				{Capacity: merchantOccupied + 1, Lock: f.merchantLock()},
			},
			want: ErrMerchantCapacity,
		},
		{
			name: "商户容量少一个 shannon",
			outputs: []types.CellOutput{
				{Capacity: 1001*unit - merchantOccupied, Lock: f.userLock()},
				{Capacity: merchantOccupied - 1, Lock: f.merchantLock()},
			},
			want: ErrMerchantCapacity,
		},
		{
			name: "单输出全退用户（独资通道）",
			outputs: []types.CellOutput{
				{Capacity: 1000 * unit, Lock: f.userLock()},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := f.buildTx(5000, tt.outputs, nil)
			f.attachWitness(t, tx, UnlockTimeout)
			err := f.verify(tx)
			if tt.want == nil {
				require.NoError(t, err)
			} else {
				require.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
}

func TestTimeoutFeeBound(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)

	t.Run("手续费恰好等于上限", func(t *testing.T) {
		tx := f.buildTx(5000, f.refundOutputs(MaxFee), nil)
		f.attachWitness(t, tx, UnlockTimeout)
		require.NoError(t, f.verify(tx))
	})

	t.Run("手续费超出上限一个 shannon", func(t *testing.T) {
		tx := f.buildTx(5000, f.refundOutputs(MaxFee+1), nil)
		f.attachWitness(t, tx, UnlockTimeout)
		err := f.verify(tx)
		require.True(t, errors.Is(err, ErrExcessiveFee), "got %v", err)
	})

	t.Run("签名在超时路径同样被校验", func(t *testing.T) {
		tx := f.buildTx(5000, f.refundOutputs(unit/2), nil)
		f.attachWitness(t, tx, UnlockTimeout)
		tx.Witnesses[0][17+65] ^= 0x01 // 用户签名
		err := f.verify(tx)
		require.True(t, errors.Is(err, ErrAuthentication), "got %v", err)
	})
}

// 代币通道

// tokenFixture 在普通 fixture 上加 type script 与数量数据
func tokenFixture(t *testing.T, amount int64) (*fixture, *types.Script) {
	f := newFixture(t, 1001*unit, 5000)
	tokenType := &types.Script{
		CodeHash: bytes.Repeat([]byte{0x77}, 32),
		HashType: types.HashTypeType,
		Args:     bytes.Repeat([]byte{0x88}, 32),
	}
	data, err := types.EncodeTokenAmount(big.NewInt(amount))
	require.NoError(t, err)
	f.cell.Output.Type = tokenType
	f.cell.Data = data
	return f, tokenType
}

func TestTimeoutTokenRefund(t *testing.T) {
	f, tokenType := tokenFixture(t, 800)
	zeroAmount, err := types.EncodeTokenAmount(big.NewInt(0))
	require.NoError(t, err)
	fullAmount := append(hexutil.Bytes(nil), f.cell.Data...)

	merchantOccupied := types.OccupiedCapacity(f.merchantLock(), tokenType, types.TokenAmountSize)
	userCapacity := f.cell.Output.Capacity - merchantOccupied - unit/2

	buildTokenRefund := func(userData, merchantData hexutil.Bytes) *types.Transaction {
		outputs := []types.CellOutput{
			{Capacity: userCapacity, Lock: f.userLock(), Type: tokenType},
			{Capacity: merchantOccupied, Lock: f.merchantLock(), Type: tokenType},
		}
		return f.buildTx(5000, outputs, []hexutil.Bytes{userData, merchantData})
	}

	t.Run("全额代币退回用户，商户为零", func(t *testing.T) {
		tx := buildTokenRefund(fullAmount, zeroAmount)
		f.attachWitness(t, tx, UnlockTimeout)
		require.NoError(t, f.verify(tx))
	})

	t.Run("用户代币数量被削减", func(t *testing.T) {
		less, err := types.EncodeTokenAmount(big.NewInt(799))
		require.NoError(t, err)
		tx := buildTokenRefund(less, zeroAmount)
		f.attachWitness(t, tx, UnlockTimeout)
		require.True(t, errors.Is(f.verify(tx), ErrTokenAmount))
	})

	t.Run("商户输出带走代币", func(t *testing.T) {
		one, err := types.EncodeTokenAmount(big.NewInt(1))
		require.NoError(t, err)
		tx := buildTokenRefund(fullAmount, one)
		f.attachWitness(t, tx, UnlockTimeout)
		require.True(t, errors.Is(f.verify(tx), ErrTokenAmount))
	})

	t.Run("输出缺少类型脚本", func(t *testing.T) {
		tx := buildTokenRefund(fullAmount, zeroAmount)
		tx.Outputs[1].Type = nil
		f.attachWitness(t, tx, UnlockTimeout)
		require.True(t, errors.Is(f.verify(tx), ErrTokenScriptMismatch))
	})

	t.Run("输出类型脚本被替换", func(t *testing.T) {
		tx := buildTokenRefund(fullAmount, zeroAmount)
		other := *tokenType
		other.Args = bytes.Repeat([]byte{0x99}, 32)
		tx.Outputs[0].Type = &other
		f.attachWitness(t, tx, UnlockTimeout)
		require.True(t, errors.Is(f.verify(tx), ErrTokenScriptMismatch))
	})
}

func TestTimeoutPlainChannelRejectsTokenOutput(t *testing.T) {
	f := newFixture(t, 1001*unit, 5000)
	outputs := f.refundOutputs(unit / 2)
	outputs[0].Type = &types.Script{
		CodeHash: bytes.Repeat([]byte{0x77}, 32),
		HashType: types.HashTypeType,
		Args:     bytes.Repeat([]byte{0x88}, 32),
	}
	tx := f.buildTx(5000, outputs, nil)
	f.attachWitness(t, tx, UnlockTimeout)
	require.True(t, errors.Is(f.verify(tx), ErrTokenScriptMismatch))
}

// 多签通道

type multisigFixture struct {
	*fixture
	keys []*ecdsa.PrivateKey
	desc *MultisigDescriptor
}

// newMultisigFixture first_n=1 的 2-of-3 商户多签通道
func newMultisigFixture(t *testing.T, capacity uint64, timeout uint64) *multisigFixture {
	t.Helper()
	keys := []*ecdsa.PrivateKey{testKey(t, 0x31), testKey(t, 0x32), testKey(t, 0x33)}
	desc := &MultisigDescriptor{
		FirstN:    1,
		Threshold: 2,
		KeyHashes: [][]byte{keyIdentity(keys[0]), keyIdentity(keys[1]), keyIdentity(keys[2])},
	}
	userKey := testKey(t, 0x22)
	params := &Parameters{
		MerchantIdentity: Hash160(desc.Encode()),
		UserIdentity:     keyIdentity(userKey),
		Timeout:          timeout,
		Algorithm:        AlgorithmMultisigV2,
		Version:          Version,
	}
	lock := &types.Script{
		CodeHash: testChannelCodeHash,
		HashType: types.HashTypeType,
		Args:     params.EncodeArgs(),
	}
	return &multisigFixture{
		fixture: &fixture{
			env:     testEnv(),
			userKey: userKey,
			params:  params,
			lock:    lock,
			cell: types.CellWithData{
				Output:   types.CellOutput{Capacity: capacity, Lock: lock},
				OutPoint: types.OutPoint{TxHash: bytes.Repeat([]byte{0xBC}, 32), Index: 0},
			},
		},
		keys: keys,
		desc: desc,
	}
}

// attachMultisigWitness 指定参与签名的钥匙下标
func (f *multisigFixture) attachMultisigWitness(t *testing.T, tx *types.Transaction, unlockType UnlockType, signers ...int) {
	t.Helper()
	message := CanonicalMessage(tx)
	w := &Witness{
		UnlockType:    unlockType,
		Descriptor:    f.desc,
		UserSignature: signMessage(t, f.userKey, message),
	}
	for _, i := range signers {
		w.MerchantSignatures = append(w.MerchantSignatures, signMessage(t, f.keys[i], message))
	}
	tx.Witnesses = []hexutil.Bytes{w.Encode()}
}

func TestMultisigSettlement(t *testing.T) {
	f := newMultisigFixture(t, 1001*unit, 5000)
	outputs := []types.CellOutput{
		{Capacity: 500 * unit, Lock: f.userLock()},
	}

	t.Run("2-of-3 达到阈值", func(t *testing.T) {
		tx := f.buildTx(0, outputs, nil)
		f.attachMultisigWitness(t, tx, UnlockSettlement, 0, 2)
		require.NoError(t, f.verify(tx))
	})

	t.Run("钥匙顺序无关", func(t *testing.T) {
		tx := f.buildTx(0, outputs, nil)
		f.attachMultisigWitness(t, tx, UnlockSettlement, 2, 0)
		require.NoError(t, f.verify(tx))
	})

	t.Run("同一把钥匙签两次只计一次", func(t *testing.T) {
		tx := f.buildTx(0, outputs, nil)
		f.attachMultisigWitness(t, tx, UnlockSettlement, 1, 1)
		err := f.verify(tx)
		require.True(t, errors.Is(err, ErrInsufficientSignatures), "got %v", err)
	})

	t.Run("first_n 未满足", func(t *testing.T) {
		// first_n=1 要求第一把钥匙必须参与
		tx := f.buildTx(0, outputs, nil)
		f.attachMultisigWitness(t, tx, UnlockSettlement, 1, 2)
		err := f.verify(tx)
		require.True(t, errors.Is(err, ErrInsufficientSignatures), "got %v", err)
	})

	t.Run("描述符与身份哈希不匹配", func(t *testing.T) {
		tx := f.buildTx(0, outputs, nil)
		message := CanonicalMessage(tx)
		tampered := &MultisigDescriptor{
			FirstN:    0,
			Threshold: 1,
			KeyHashes: [][]byte{keyIdentity(f.keys[0])},
		}
		w := &Witness{
			UnlockType:         UnlockSettlement,
			Descriptor:         tampered,
			MerchantSignatures: [][]byte{signMessage(t, f.keys[0], message)},
			UserSignature:      signMessage(t, f.userKey, message),
		}
		tx.Witnesses = []hexutil.Bytes{w.Encode()}
		err := f.verify(tx)
		require.True(t, errors.Is(err, ErrInvalidMultisigDescriptor), "got %v", err)
	})
}

func TestMultisigTimeoutMerchantLock(t *testing.T) {
	f := newMultisigFixture(t, 1001*unit, 5000)

	multisigLock := &types.Script{
		CodeHash: testMultisigCodeHash,
		HashType: types.HashTypeType,
		Args:     f.params.MerchantIdentity,
	}
	occupied := types.OccupiedCapacity(multisigLock, nil, 0)
	outputs := []types.CellOutput{
		{Capacity: 1001*unit - occupied - unit/2, Lock: f.userLock()},
		{Capacity: occupied, Lock: multisigLock},
	}

	tx := f.buildTx(5000, outputs, nil)
	f.attachMultisigWitness(t, tx, UnlockTimeout, 0, 1)
	require.NoError(t, f.verify(tx))

	// 多签通道的退款输出 1 必须用多签锁，单签锁不认
	bad := f.buildTx(5000, []types.CellOutput{
		outputs[0],
		{Capacity: occupied, Lock: &types.Script{
			CodeHash: testSighashCodeHash,
			HashType: types.HashTypeType,
			Args:     f.params.MerchantIdentity,
		}},
	}, nil)
	f.attachMultisigWitness(t, bad, UnlockTimeout, 0, 1)
	require.True(t, errors.Is(f.verify(bad), ErrRefundOutputShape))
}
