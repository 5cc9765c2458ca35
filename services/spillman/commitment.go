package spillman

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/types"
	"github.com/cellpay/spillman-sdk-go/wallet"
)

// BuildCommitment 用户构建并签署一份支付承诺
//
// 承诺花费通道 cell（since=0，不受超时约束）：
//   - 输出 0：用户找零
//   - 输出 1：商户收款，容量 = 累计支付 + 商户输出自身的最小占用
//
// witness 的商户槽位保持全零，用户签好自己的一侧后把整笔交易递给商户。
// 金额只增不减：新承诺覆盖全部既往支付，商户只需保留金额最高的一份。
func (s *spillmanService) BuildCommitment(req *CommitmentRequest, w ...wallet.Wallet) (*types.Transaction, error) {
	wal := s.getWallet(w...)
	if wal == nil {
		return nil, fmt.Errorf("wallet is required")
	}
	if req == nil || req.Params == nil {
		return nil, fmt.Errorf("commitment request requires channel parameters")
	}

	if req.Params.Algorithm.IsMultisig() && req.Descriptor == nil {
		return nil, fmt.Errorf("multisig channel requires the merchant descriptor")
	}

	cell := &req.ChannelCell
	token := cell.Output.Type != nil
	if token && req.TokenPayment == nil {
		return nil, fmt.Errorf("token channel requires a token payment amount")
	}

	userLock := s.cfg.SighashLock(req.Params.UserIdentity)
	merchantLock := s.merchantRefundLock(req.Params)

	var userData, merchantData []byte
	if token {
		total, err := types.DecodeTokenAmount(cell.Data)
		if err != nil {
			return nil, fmt.Errorf("decode channel token amount: %w", err)
		}
		if req.TokenPayment.Cmp(total) > 0 {
			return nil, fmt.Errorf("token payment %s exceeds channel amount %s", req.TokenPayment, total)
		}
		if merchantData, err = types.EncodeTokenAmount(req.TokenPayment); err != nil {
			return nil, fmt.Errorf("encode merchant token amount: %w", err)
		}
		remain := new(big.Int).Sub(total, req.TokenPayment)
		if userData, err = types.EncodeTokenAmount(remain); err != nil {
			return nil, fmt.Errorf("encode user token amount: %w", err)
		}
	}

	merchantOccupied := types.OccupiedCapacity(merchantLock, cell.Output.Type, len(merchantData))
	merchantCapacity := req.Payment + merchantOccupied
	userOccupied := types.OccupiedCapacity(userLock, cell.Output.Type, len(userData))

	tx := &types.Transaction{
		CellDeps: s.channelCellDeps(token),
		Inputs: []types.CellInput{
			{Since: 0, PreviousOutput: cell.OutPoint},
		},
		Outputs: []types.CellOutput{
			{Lock: userLock, Type: cell.Output.Type},
			{Capacity: merchantCapacity, Lock: merchantLock, Type: cell.Output.Type},
		},
		OutputsData: []hexutil.Bytes{userData, merchantData},
	}

	// 手续费迭代：用户找零承担手续费
	// 多签通道的 witness 从一开始就携带描述符，否则商户补签后长度对不上
	witness := channel.NewWitnessTemplate(channel.UnlockSettlement, req.Descriptor)
	tx.Witnesses = []hexutil.Bytes{witness.Encode()}

	feeRate := s.feeRate(req.FeeRate)
	var fee uint64
	for round := 0; round < 10; round++ {
		spend := merchantCapacity + fee
		if cell.Output.Capacity < spend+userOccupied {
			return nil, fmt.Errorf("channel balance too low: capacity %d, need %d for payment and %d for user change",
				cell.Output.Capacity, spend, userOccupied)
		}
		tx.Outputs[0].Capacity = cell.Output.Capacity - spend

		newFee := estimateFee(tx.SerializedSize(), feeRate)
		if newFee == fee {
			break
		}
		fee = newFee
	}

	// 用户一侧先签，商户槽位保持全零
	message := channel.CanonicalMessage(tx)
	sig, err := wal.SignHash(message)
	if err != nil {
		return nil, fmt.Errorf("sign commitment: %w", err)
	}
	witness.UserSignature = sig
	tx.Witnesses[0] = witness.Encode()

	return tx, nil
}
