package spillman

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/client"
	"github.com/cellpay/spillman-sdk-go/services"
	"github.com/cellpay/spillman-sdk-go/types"
	"github.com/cellpay/spillman-sdk-go/wallet"
)

const unit = types.ShannonsPerByte

var (
	testChannelCodeHash  = bytes.Repeat([]byte{0xCC}, 32)
	testSighashCodeHash  = bytes.Repeat([]byte{0x5A}, 32)
	testMultisigCodeHash = bytes.Repeat([]byte{0x5B}, 32)
)

// fakeRPC 按锁参数返回预置 cell 的传输层替身
type fakeRPC struct {
	cellsByOwner map[string][]types.CellWithData
	sendFn       func(signedTxHex string) (*client.SendTxResult, error)
}

func (f *fakeRPC) Call(ctx context.Context, method string, params interface{}) (interface{}, error) {
	if method != "ledger_getCells" {
		return nil, errors.New("method not stubbed: " + method)
	}
	args, ok := params.([]interface{})
	if !ok || len(args) == 0 {
		return nil, errors.New("unexpected getCells params")
	}
	lock, ok := args[0].(*types.Script)
	if !ok {
		return nil, errors.New("getCells params carry no lock script")
	}
	cells := f.cellsByOwner[string(lock.Args)]

	// 模拟真实 RPC 的泛型解码
	data, err := json.Marshal(cells)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

func (f *fakeRPC) SendRawTransaction(ctx context.Context, signedTxHex string) (*client.SendTxResult, error) {
	if f.sendFn != nil {
		return f.sendFn(signedTxHex)
	}
	return &client.SendTxResult{TxHash: "0xabc", Accepted: true}, nil
}

func (f *fakeRPC) Subscribe(ctx context.Context, filter *client.EventFilter) (<-chan *client.Event, error) {
	return nil, errors.New("not supported")
}

func (f *fakeRPC) Close() error { return nil }

func testConfig() *services.Config {
	return &services.Config{
		ChannelLockCodeHash: testChannelCodeHash,
		ChannelLockHashType: types.HashTypeType,
		ChannelLockDep: types.CellDep{
			OutPoint: types.OutPoint{TxHash: bytes.Repeat([]byte{0x01}, 32)},
			DepType:  types.DepTypeCode,
		},
		SighashCodeHash: testSighashCodeHash,
		SighashHashType: types.HashTypeType,
		SighashDep: types.CellDep{
			OutPoint: types.OutPoint{TxHash: bytes.Repeat([]byte{0x02}, 32)},
			DepType:  types.DepTypeDepGroup,
		},
		MultisigCodeHash: testMultisigCodeHash,
		MultisigHashType: types.HashTypeType,
		MultisigDep: types.CellDep{
			OutPoint: types.OutPoint{TxHash: bytes.Repeat([]byte{0x03}, 32)},
			DepType:  types.DepTypeDepGroup,
		},
	}
}

func testWallet(t *testing.T, seed byte) wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWalletFromPrivateKeyBytes(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return w
}

// ownerCells 生成某个单签锁名下的活跃 cell，出点互不相同
func ownerCells(identity []byte, capacities ...uint64) []types.CellWithData {
	lock := &types.Script{
		CodeHash: testSighashCodeHash,
		HashType: types.HashTypeType,
		Args:     identity,
	}
	cells := make([]types.CellWithData, len(capacities))
	for i, capacity := range capacities {
		txHash := bytes.Repeat([]byte{byte(0xA0 + i)}, 31)
		txHash = append(txHash, identity[0])
		cells[i] = types.CellWithData{
			Output:   types.CellOutput{Capacity: capacity, Lock: lock},
			OutPoint: types.OutPoint{TxHash: txHash, Index: uint32(i)},
		}
	}
	return cells
}

func newTestService(rpc *fakeRPC, cfg *services.Config) *spillmanService {
	return NewService(client.NewLedger(rpc), cfg).(*spillmanService)
}

func testParams(merchant, user wallet.Wallet, timeout uint64, algorithm channel.Algorithm) *channel.Parameters {
	return &channel.Parameters{
		MerchantIdentity: merchant.Identity(),
		UserIdentity:     user.Identity(),
		Timeout:          timeout,
		Algorithm:        algorithm,
	}
}

// channelCellAt 按通道参数构造一个链上通道 cell
func channelCellAt(s *spillmanService, params *channel.Parameters, capacity uint64, data []byte, tokenScript *types.Script) types.CellWithData {
	return types.CellWithData{
		Output: types.CellOutput{
			Capacity: capacity,
			Lock:     s.channelLock(params),
			Type:     tokenScript,
		},
		Data:     data,
		OutPoint: types.OutPoint{TxHash: bytes.Repeat([]byte{0xFD}, 32), Index: 0},
	}
}

// multisigMerchant 2-of-3 商户：描述符、其 hash160 身份与前两把钥匙的 wallet
func multisigMerchant(t *testing.T) (*channel.MultisigDescriptor, []byte, []wallet.Wallet) {
	t.Helper()
	var wallets []wallet.Wallet
	var hashes [][]byte
	for seed := byte(0x31); seed <= 0x33; seed++ {
		w := testWallet(t, seed)
		wallets = append(wallets, w)
		hashes = append(hashes, w.Identity())
	}
	desc := &channel.MultisigDescriptor{
		FirstN:    0,
		Threshold: 2,
		KeyHashes: hashes,
	}
	return desc, channel.Hash160(desc.Encode()), wallets[:2]
}

// feeOf 交易的输入输出容量差
func feeOf(tx *types.Transaction, resolved []types.CellWithData) uint64 {
	var in, out uint64
	for i := range resolved {
		in += resolved[i].Output.Capacity
	}
	for i := range tx.Outputs {
		out += tx.Outputs[i].Capacity
	}
	if in < out {
		panic(fmt.Sprintf("outputs exceed inputs: %d < %d", in, out))
	}
	return in - out
}
