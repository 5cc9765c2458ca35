package spillman

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/types"
	"github.com/cellpay/spillman-sdk-go/wallet"
)

// CompleteSettlement 商户对用户承诺补签，得到可广播的结算交易
//
// 商户只应对手里金额最高的承诺执行结算。补签不改动交易体，
// 只填充 witness 中的商户签名槽位，因此用户已签的消息保持有效。
// 多签商户按描述符顺序传入 threshold 把钥匙对应的 wallet。
func (s *spillmanService) CompleteSettlement(req *SettlementRequest, w ...wallet.Wallet) (*types.Transaction, error) {
	wallets := s.getWallets(w...)
	if len(wallets) == 0 {
		return nil, fmt.Errorf("wallet is required")
	}
	if req == nil || req.Transaction == nil || req.Params == nil {
		return nil, fmt.Errorf("settlement request requires the commitment and channel parameters")
	}
	if len(req.Transaction.Witnesses) == 0 {
		return nil, fmt.Errorf("commitment carries no witness")
	}

	witness, err := channel.ParseWitness(req.Transaction.Witnesses[0], req.Params.Algorithm)
	if err != nil {
		return nil, err
	}
	if witness.UnlockType != channel.UnlockSettlement {
		return nil, fmt.Errorf("witness unlock type %#x is not a settlement", byte(witness.UnlockType))
	}
	if !witness.MerchantSlotEmpty() {
		return nil, channel.ErrAlreadySettled
	}

	// 复制交易再补签，调用方手里的承诺保持原样
	tx := cloneTransaction(req.Transaction)
	message := channel.CanonicalMessage(tx)

	var sigs [][]byte
	if req.Params.Algorithm.IsMultisig() {
		if witness.Descriptor == nil {
			return nil, channel.ErrInvalidMultisigDescriptor
		}
		if req.Descriptor != nil && !bytes.Equal(req.Descriptor.Encode(), witness.Descriptor.Encode()) {
			return nil, fmt.Errorf("commitment descriptor differs from the configured one")
		}
		if len(wallets) != int(witness.Descriptor.Threshold) {
			return nil, fmt.Errorf("multisig settlement needs %d wallets, got %d",
				witness.Descriptor.Threshold, len(wallets))
		}
		for i, wal := range wallets {
			sig, err := wal.SignHash(message)
			if err != nil {
				return nil, fmt.Errorf("sign settlement with wallet %d: %w", i, err)
			}
			sigs = append(sigs, sig)
		}
	} else {
		sig, err := wallets[0].SignHash(message)
		if err != nil {
			return nil, fmt.Errorf("sign settlement: %w", err)
		}
		sigs = [][]byte{sig}
	}

	// 签名按槽位偏移拼入原 witness 字节，头部、描述符与用户签名原样保留
	proof := tx.Witnesses[0][witness.MerchantProofOffset():]
	for i, sig := range sigs {
		copy(proof[i*channel.SignatureSize:], sig)
	}
	return tx, nil
}

// cloneTransaction 深拷贝交易，补签不触碰调用方持有的副本
func cloneTransaction(tx *types.Transaction) *types.Transaction {
	out := &types.Transaction{
		Version:    tx.Version,
		CellDeps:   append([]types.CellDep(nil), tx.CellDeps...),
		HeaderDeps: append([]hexutil.Bytes(nil), tx.HeaderDeps...),
		Inputs:     append([]types.CellInput(nil), tx.Inputs...),
		Outputs:    append([]types.CellOutput(nil), tx.Outputs...),
	}
	for _, d := range tx.OutputsData {
		out.OutputsData = append(out.OutputsData, append(hexutil.Bytes(nil), d...))
	}
	for _, w := range tx.Witnesses {
		out.Witnesses = append(out.Witnesses, append(hexutil.Bytes(nil), w...))
	}
	return out
}
