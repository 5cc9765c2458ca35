package spillman

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/types"
	"github.com/cellpay/spillman-sdk-go/wallet"
)

// FundingDraft 在途的出资交易
//
// 共同出资时整个草稿（交易 + 已解析输入 + 通道参数）经 JSON 序列化在
// 双方之间传递；每个构建步骤都在副本上工作，不修改传入的草稿
type FundingDraft struct {
	Transaction    *types.Transaction   `json:"transaction"`
	ResolvedInputs []types.CellWithData `json:"resolved_inputs"`
	Params         *channel.Parameters  `json:"params"`
}

// Encode 序列化草稿（交给对方或落盘）
func (d *FundingDraft) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// DecodeFundingDraft 反序列化草稿
func DecodeFundingDraft(data []byte) (*FundingDraft, error) {
	var d FundingDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode funding draft: %w", err)
	}
	if d.Transaction == nil || d.Params == nil {
		return nil, fmt.Errorf("funding draft missing transaction or params")
	}
	return &d, nil
}

// clone 深拷贝草稿（经 JSON 往返，与跨方传递完全同构）
func (d *FundingDraft) clone() (*FundingDraft, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("clone funding draft: %w", err)
	}
	var copied FundingDraft
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("clone funding draft: %w", err)
	}
	return &copied, nil
}

// BuildFunding 构建出资交易草稿（单方出资，或共同出资的第一步）
//
// 通道 cell 固定在输出 0；本步骤只平衡本方的出资与找零，witness 留空占位，
// 签名统一由 SignFunding 在所有输入确定之后完成
func (s *spillmanService) BuildFunding(ctx context.Context, req *FundingRequest, w ...wallet.Wallet) (*FundingDraft, error) {
	wal := s.getWallet(w...)
	if wal == nil {
		return nil, fmt.Errorf("wallet is required")
	}
	if req == nil || req.Params == nil {
		return nil, fmt.Errorf("funding request requires channel parameters")
	}

	token := req.TokenAmount != nil
	if token && s.cfg.Token == nil {
		return nil, fmt.Errorf("token channel requested but no token config")
	}

	lock := s.channelLock(req.Params)
	var typeScript *types.Script
	var data []byte
	if token {
		typeScript = s.cfg.Token.TokenScript()
		encoded, err := types.EncodeTokenAmount(req.TokenAmount)
		if err != nil {
			return nil, fmt.Errorf("encode channel token amount: %w", err)
		}
		data = encoded
	}

	occupied := types.OccupiedCapacity(lock, typeScript, len(data))
	if req.Capacity < occupied {
		return nil, fmt.Errorf("channel capacity %d below occupied minimum %d", req.Capacity, occupied)
	}

	draft := &FundingDraft{
		Transaction: &types.Transaction{
			CellDeps: s.channelCellDeps(token),
			Outputs: []types.CellOutput{
				{Capacity: req.Capacity, Lock: lock, Type: typeScript},
			},
			OutputsData: []hexutil.Bytes{data},
		},
		Params: req.Params,
	}

	if err := s.fundStep(ctx, draft, wal, req.Capacity, req.TokenAmount, s.feeRate(req.FeeRate)); err != nil {
		return nil, err
	}
	return draft, nil
}

// AddFunding 共同出资的第二步：扩展输出 0 的容量（与代币数量），平衡本方出资
func (s *spillmanService) AddFunding(ctx context.Context, draft *FundingDraft, req *ContributionRequest, w ...wallet.Wallet) (*FundingDraft, error) {
	wal := s.getWallet(w...)
	if wal == nil {
		return nil, fmt.Errorf("wallet is required")
	}
	if draft == nil || draft.Transaction == nil || len(draft.Transaction.Outputs) == 0 {
		return nil, fmt.Errorf("funding draft has no channel output")
	}

	next, err := draft.clone()
	if err != nil {
		return nil, err
	}

	// 输出 0 必须是本通道的锁，防止在别人的草稿上追加出资
	expected := s.channelLock(next.Params)
	channelOutput := &next.Transaction.Outputs[0]
	if !channelOutput.Lock.Equal(expected) {
		return nil, fmt.Errorf("draft output 0 is not the channel lock")
	}

	channelOutput.Capacity += req.Capacity

	if req.TokenAmount != nil {
		existing, err := types.DecodeTokenAmount(next.Transaction.OutputsData[0])
		if err != nil {
			return nil, fmt.Errorf("draft channel output carries no token amount: %w", err)
		}
		total := new(big.Int).Add(existing, req.TokenAmount)
		encoded, err := types.EncodeTokenAmount(total)
		if err != nil {
			return nil, fmt.Errorf("encode channel token amount: %w", err)
		}
		next.Transaction.OutputsData[0] = encoded
	}

	if err := s.fundStep(ctx, next, wal, req.Capacity, req.TokenAmount, s.feeRate(req.FeeRate)); err != nil {
		return nil, err
	}
	return next, nil
}

// fundStep 为一方的出资收集输入、添加找零并迭代估算手续费
func (s *spillmanService) fundStep(ctx context.Context, draft *FundingDraft, wal wallet.Wallet, contribution uint64, tokenAmount *big.Int, feeRate uint64) error {
	tx := draft.Transaction
	funderLock := s.cfg.SighashLock(wal.Identity())

	cells, err := s.ledger.GetCells(ctx, funderLock, 0)
	if err != nil {
		return fmt.Errorf("collect funder cells: %w", err)
	}

	// 代币通道先挑选代币 cell，数量不足直接失败
	var tokenCells, plainCells []types.CellWithData
	var extraOutputs []types.CellOutput
	var extraData []hexutil.Bytes
	if tokenAmount != nil {
		tokenScript := s.cfg.Token.TokenScript()
		collected := new(big.Int)
		for _, cell := range cells {
			if cell.Output.Type.Equal(tokenScript) && collected.Cmp(tokenAmount) < 0 {
				amount, err := types.DecodeTokenAmount(cell.Data)
				if err != nil {
					continue
				}
				tokenCells = append(tokenCells, cell)
				collected.Add(collected, amount)
			} else if cell.Output.Type == nil {
				plainCells = append(plainCells, cell)
			}
		}
		if collected.Cmp(tokenAmount) < 0 {
			return fmt.Errorf("insufficient token balance: need %s, collected %s", tokenAmount, collected)
		}

		// 代币找零 cell（容量恰好为最小占用）
		if leftover := new(big.Int).Sub(collected, tokenAmount); leftover.Sign() > 0 {
			leftoverData, err := types.EncodeTokenAmount(leftover)
			if err != nil {
				return fmt.Errorf("encode token change: %w", err)
			}
			extraOutputs = append(extraOutputs, types.CellOutput{
				Capacity: types.OccupiedCapacity(funderLock, tokenScript, len(leftoverData)),
				Lock:     funderLock,
				Type:     tokenScript,
			})
			extraData = append(extraData, leftoverData)
		}
	} else {
		for _, cell := range cells {
			if cell.Output.Type == nil {
				plainCells = append(plainCells, cell)
			}
		}
	}

	baseInputs := len(tx.Inputs)
	baseResolved := len(draft.ResolvedInputs)
	addInput := func(cell types.CellWithData) {
		tx.Inputs = append(tx.Inputs, types.CellInput{PreviousOutput: cell.OutPoint})
		// 零值占位 witness，确保体积估算覆盖最终签名
		tx.Witnesses = append(tx.Witnesses, make(hexutil.Bytes, channel.SignatureSize))
		draft.ResolvedInputs = append(draft.ResolvedInputs, cell)
	}

	var inputCapacity uint64
	for _, cell := range tokenCells {
		addInput(cell)
		inputCapacity += cell.Output.Capacity
	}

	var extraOutCapacity uint64
	for _, out := range extraOutputs {
		extraOutCapacity += out.Capacity
	}

	changeOccupied := types.OccupiedCapacity(funderLock, nil, 0)
	baseOutputs := len(tx.Outputs)
	tx.Outputs = append(tx.Outputs, extraOutputs...)
	tx.OutputsData = append(tx.OutputsData, extraData...)

	// 迭代：手续费影响体积，体积又影响手续费，最多十轮收敛
	var fee uint64
	nextPlain := 0
	for round := 0; round < 10; round++ {
		need := contribution + extraOutCapacity + fee
		for inputCapacity < need+changeOccupied && nextPlain < len(plainCells) {
			addInput(plainCells[nextPlain])
			inputCapacity += plainCells[nextPlain].Output.Capacity
			nextPlain++
		}
		if inputCapacity < need {
			tx.Inputs = tx.Inputs[:baseInputs]
			tx.Witnesses = tx.Witnesses[:baseInputs]
			draft.ResolvedInputs = draft.ResolvedInputs[:baseResolved]
			return fmt.Errorf("insufficient capacity: need %d, collected %d", need, inputCapacity)
		}

		// 找零不足最小占用时并入手续费，不产出碎 cell
		change := inputCapacity - need
		tx.Outputs = tx.Outputs[:baseOutputs+len(extraOutputs)]
		tx.OutputsData = tx.OutputsData[:baseOutputs+len(extraOutputs)]
		if change >= changeOccupied {
			tx.Outputs = append(tx.Outputs, types.CellOutput{Capacity: change, Lock: funderLock})
			tx.OutputsData = append(tx.OutputsData, hexutil.Bytes{})
		}

		newFee := estimateFee(tx.SerializedSize(), feeRate)
		if newFee == fee {
			return nil
		}
		fee = newFee
	}
	return fmt.Errorf("fee estimation did not converge after 10 rounds")
}

// SignFunding 对草稿中属于自己的输入签名
//
// 签名消息对所有输入相同（规范消息不含 witness），因此双方可以在输入
// 集合确定后各自独立签名
func (s *spillmanService) SignFunding(draft *FundingDraft, w ...wallet.Wallet) error {
	wal := s.getWallet(w...)
	if wal == nil {
		return fmt.Errorf("wallet is required")
	}
	if draft == nil || draft.Transaction == nil {
		return fmt.Errorf("funding draft is empty")
	}
	if len(draft.ResolvedInputs) != len(draft.Transaction.Inputs) {
		return fmt.Errorf("resolved inputs out of sync: %d inputs, %d resolved",
			len(draft.Transaction.Inputs), len(draft.ResolvedInputs))
	}

	funderLock := s.cfg.SighashLock(wal.Identity())
	message := channel.CanonicalMessage(draft.Transaction)

	signed := 0
	for i := range draft.ResolvedInputs {
		if !draft.ResolvedInputs[i].Output.Lock.Equal(funderLock) {
			continue
		}
		sig, err := wal.SignHash(message)
		if err != nil {
			return fmt.Errorf("sign funding input %d: %w", i, err)
		}
		draft.Transaction.Witnesses[i] = sig
		signed++
	}
	if signed == 0 {
		return fmt.Errorf("no inputs owned by this wallet")
	}
	return nil
}

// BroadcastFunding 广播出资交易，返回通道句柄（通道 cell 固定在输出 0）
func (s *spillmanService) BroadcastFunding(ctx context.Context, draft *FundingDraft) (*ChannelHandle, error) {
	if draft == nil || draft.Transaction == nil || len(draft.Transaction.Outputs) == 0 {
		return nil, fmt.Errorf("funding draft has no channel output")
	}

	txHash, err := s.ledger.SendTransaction(ctx, draft.Transaction)
	if err != nil {
		return nil, fmt.Errorf("broadcast funding: %w", err)
	}

	return &ChannelHandle{
		TxHash: txHash,
		Cell: types.CellWithData{
			Output: draft.Transaction.Outputs[0],
			Data:   draft.Transaction.OutputsData[0],
			OutPoint: types.OutPoint{
				TxHash: draft.Transaction.Hash(),
				Index:  0,
			},
		},
		Params: draft.Params,
	}, nil
}
