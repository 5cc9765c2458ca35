package channel

import (
	"bytes"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/cellpay/spillman-sdk-go/types"
)

// 测试环境：固定的标准锁与通道锁代码哈希
var (
	testSighashCodeHash  = bytes.Repeat([]byte{0x5A}, 32)
	testMultisigCodeHash = bytes.Repeat([]byte{0x5B}, 32)
	testChannelCodeHash  = bytes.Repeat([]byte{0xCC}, 32)
)

const unit = types.ShannonsPerByte // 1 原生单位 = 1e8 shannon

func testEnv() *Environment {
	return &Environment{
		SighashCodeHash:  testSighashCodeHash,
		SighashHashType:  types.HashTypeType,
		MultisigCodeHash: testMultisigCodeHash,
		MultisigHashType: types.HashTypeType,
	}
}

func testKey(t *testing.T, seed byte) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ethcrypto.ToECDSA(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return key
}

func keyIdentity(key *ecdsa.PrivateKey) []byte {
	return Hash160(ethcrypto.CompressPubkey(&key.PublicKey))
}

func signMessage(t *testing.T, key *ecdsa.PrivateKey, message []byte) []byte {
	t.Helper()
	sig, err := ethcrypto.Sign(message, key)
	require.NoError(t, err)
	return sig
}

// fixture 一条已建立的单签通道：双方密钥、锁脚本、链上通道 cell
type fixture struct {
	env         *Environment
	merchantKey *ecdsa.PrivateKey
	userKey     *ecdsa.PrivateKey
	params      *Parameters
	lock        *types.Script
	cell        types.CellWithData
}

func newFixture(t *testing.T, capacity uint64, timeout uint64) *fixture {
	t.Helper()
	merchantKey := testKey(t, 0x11)
	userKey := testKey(t, 0x22)
	params := &Parameters{
		MerchantIdentity: keyIdentity(merchantKey),
		UserIdentity:     keyIdentity(userKey),
		Timeout:          timeout,
		Algorithm:        AlgorithmSingle,
		Version:          Version,
	}
	lock := &types.Script{
		CodeHash: testChannelCodeHash,
		HashType: types.HashTypeType,
		Args:     params.EncodeArgs(),
	}
	return &fixture{
		env:         testEnv(),
		merchantKey: merchantKey,
		userKey:     userKey,
		params:      params,
		lock:        lock,
		cell: types.CellWithData{
			Output: types.CellOutput{Capacity: capacity, Lock: lock},
			OutPoint: types.OutPoint{
				TxHash: bytes.Repeat([]byte{0xBB}, 32),
				Index:  0,
			},
		},
	}
}

// userLock 用户的标准单签锁
func (f *fixture) userLock() *types.Script {
	return &types.Script{
		CodeHash: testSighashCodeHash,
		HashType: types.HashTypeType,
		Args:     f.params.UserIdentity,
	}
}

// merchantLock 商户的标准单签锁
func (f *fixture) merchantLock() *types.Script {
	return &types.Script{
		CodeHash: testSighashCodeHash,
		HashType: types.HashTypeType,
		Args:     f.params.MerchantIdentity,
	}
}

// buildTx 花费通道 cell 的交易骨架（witness 待填）
func (f *fixture) buildTx(since uint64, outputs []types.CellOutput, data []hexutil.Bytes) *types.Transaction {
	if data == nil {
		data = make([]hexutil.Bytes, len(outputs))
	}
	return &types.Transaction{
		Inputs: []types.CellInput{
			{Since: since, PreviousOutput: f.cell.OutPoint},
		},
		Outputs:     outputs,
		OutputsData: data,
	}
}

// attachWitness 双方签名并挂载 witness
func (f *fixture) attachWitness(t *testing.T, tx *types.Transaction, unlockType UnlockType) {
	t.Helper()
	message := CanonicalMessage(tx)
	w := &Witness{
		UnlockType:         unlockType,
		MerchantSignatures: [][]byte{signMessage(t, f.merchantKey, message)},
		UserSignature:      signMessage(t, f.userKey, message),
	}
	tx.Witnesses = []hexutil.Bytes{w.Encode()}
}

func (f *fixture) verify(tx *types.Transaction) error {
	return f.env.Verify(tx, []types.CellWithData{f.cell}, f.lock)
}
