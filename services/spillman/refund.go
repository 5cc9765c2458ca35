package spillman

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/types"
	"github.com/cellpay/spillman-sdk-go/wallet"
)

// BuildRefund 构建退款交易并由商户预签
//
// 通道建立时执行：商户先在退款交易上签名交给用户，用户因此无需信任
// 商户配合即可在超时后取回资金。输入 since 写入通道超时值，成熟前
// 无法上链。共同出资的通道带一个商户退款输出，容量恰好等于其占用。
func (s *spillmanService) BuildRefund(req *RefundRequest, w ...wallet.Wallet) (*types.Transaction, error) {
	wallets := s.getWallets(w...)
	if len(wallets) == 0 {
		return nil, fmt.Errorf("wallet is required")
	}
	if req == nil || req.Params == nil {
		return nil, fmt.Errorf("refund request requires channel parameters")
	}
	if req.Params.Algorithm.IsMultisig() && req.Descriptor == nil {
		return nil, fmt.Errorf("multisig channel requires the merchant descriptor")
	}

	cell := &req.ChannelCell
	token := cell.Output.Type != nil

	userLock := s.cfg.SighashLock(req.Params.UserIdentity)

	// 代币通道：全部代币原样退给用户，商户输出数量为零
	var userData, merchantData []byte
	if token {
		userData = append([]byte(nil), cell.Data...)
		merchantData = make([]byte, types.TokenAmountSize)
	}

	tx := &types.Transaction{
		CellDeps: s.channelCellDeps(token),
		Inputs: []types.CellInput{
			{Since: req.Params.Timeout, PreviousOutput: cell.OutPoint},
		},
		Outputs: []types.CellOutput{
			{Lock: userLock, Type: cell.Output.Type},
		},
		OutputsData: []hexutil.Bytes{userData},
	}

	var merchantOccupied uint64
	if req.CoFunded {
		merchantLock := s.merchantRefundLock(req.Params)
		merchantOccupied = types.OccupiedCapacity(merchantLock, cell.Output.Type, len(merchantData))
		tx.Outputs = append(tx.Outputs, types.CellOutput{
			Capacity: merchantOccupied,
			Lock:     merchantLock,
			Type:     cell.Output.Type,
		})
		tx.OutputsData = append(tx.OutputsData, merchantData)
	}

	witness := channel.NewWitnessTemplate(channel.UnlockTimeout, req.Descriptor)
	tx.Witnesses = []hexutil.Bytes{witness.Encode()}

	userOccupied := types.OccupiedCapacity(userLock, cell.Output.Type, len(userData))
	feeRate := s.feeRate(req.FeeRate)
	var fee uint64
	for round := 0; round < 10; round++ {
		spend := merchantOccupied + fee
		if cell.Output.Capacity < spend+userOccupied {
			return nil, fmt.Errorf("channel capacity %d cannot cover refund outputs and fee %d",
				cell.Output.Capacity, fee)
		}
		tx.Outputs[0].Capacity = cell.Output.Capacity - spend

		newFee := estimateFee(tx.SerializedSize(), feeRate)
		if newFee == fee {
			break
		}
		fee = newFee
	}
	if fee > channel.MaxFee {
		return nil, fmt.Errorf("refund fee %d exceeds policy limit %d", fee, channel.MaxFee)
	}

	// 商户预签
	message := channel.CanonicalMessage(tx)
	if req.Params.Algorithm.IsMultisig() {
		if len(wallets) != int(req.Descriptor.Threshold) {
			return nil, fmt.Errorf("multisig refund needs %d wallets, got %d",
				req.Descriptor.Threshold, len(wallets))
		}
	} else if len(wallets) != 1 {
		return nil, fmt.Errorf("single-sig refund needs exactly 1 wallet, got %d", len(wallets))
	}
	for i, wal := range wallets {
		sig, err := wal.SignHash(message)
		if err != nil {
			return nil, fmt.Errorf("pre-sign refund with wallet %d: %w", i, err)
		}
		witness.MerchantSignatures[i] = sig
	}
	tx.Witnesses[0] = witness.Encode()

	return tx, nil
}

// CounterSignRefund 用户补签商户预签过的退款交易
//
// 超时成熟后调用。补签就地写入 witness 的用户槽位，交易其余部分不变。
func (s *spillmanService) CounterSignRefund(tx *types.Transaction, params *channel.Parameters, w ...wallet.Wallet) error {
	wal := s.getWallet(w...)
	if wal == nil {
		return fmt.Errorf("wallet is required")
	}
	if tx == nil || params == nil {
		return fmt.Errorf("refund transaction and channel parameters are required")
	}
	if len(tx.Witnesses) == 0 {
		return fmt.Errorf("refund transaction carries no witness")
	}

	witness, err := channel.ParseWitness(tx.Witnesses[0], params.Algorithm)
	if err != nil {
		return err
	}
	if witness.UnlockType != channel.UnlockTimeout {
		return fmt.Errorf("witness unlock type %#x is not a timeout refund", byte(witness.UnlockType))
	}
	if witness.MerchantSlotEmpty() {
		return fmt.Errorf("refund transaction lacks the merchant pre-signature")
	}

	sig, err := wal.SignHash(channel.CanonicalMessage(tx))
	if err != nil {
		return fmt.Errorf("sign refund: %w", err)
	}
	witness.UserSignature = sig
	tx.Witnesses[0] = witness.Encode()
	return nil
}
