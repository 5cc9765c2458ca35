package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cellpay/spillman-sdk-go/types"
)

// Ledger 在传输层之上的类型化账本客户端
//
// 把 JSON-RPC 的泛型结果解析成 types 包的 cell 模型类型，
// 交易构建器只依赖这一层，不直接接触传输细节
type Ledger struct {
	rpc    Client
	logger Logger
}

// NewLedger 创建类型化账本客户端
func NewLedger(rpc Client) *Ledger {
	return &Ledger{rpc: rpc}
}

// NewLedgerWithLogger 创建带日志的类型化账本客户端
func NewLedgerWithLogger(rpc Client, logger Logger) *Ledger {
	return &Ledger{rpc: rpc, logger: logger}
}

// RPC 返回底层传输客户端
func (l *Ledger) RPC() Client {
	return l.rpc
}

// Close 关闭底层连接
func (l *Ledger) Close() error {
	return l.rpc.Close()
}

// decodeResult 把泛型 JSON-RPC 结果重新编码后解析成目标类型
func decodeResult(raw interface{}, out interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return NewInvalidResponseError(fmt.Sprintf("re-encode result: %v", err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewInvalidResponseError(fmt.Sprintf("decode result: %v", err))
	}
	return nil
}

// GetCells 按锁脚本收集活跃 cell（余额收集的基础）
//
// limit 为 0 表示不限制数量
func (l *Ledger) GetCells(ctx context.Context, lock *types.Script, limit int) ([]types.CellWithData, error) {
	result, err := l.rpc.Call(ctx, "ledger_getCells", []interface{}{lock, limit})
	if err != nil {
		return nil, fmt.Errorf("get cells: %w", err)
	}

	var cells []types.CellWithData
	if err := decodeResult(result, &cells); err != nil {
		return nil, err
	}

	if l.logger != nil {
		l.logger.Debug("collected live cells", "count", len(cells))
	}
	return cells, nil
}

// GetLiveCell 查询单个活跃 cell；已被花费或不存在时返回错误
func (l *Ledger) GetLiveCell(ctx context.Context, outPoint *types.OutPoint) (*types.CellWithData, error) {
	result, err := l.rpc.Call(ctx, "ledger_getLiveCell", []interface{}{outPoint})
	if err != nil {
		return nil, fmt.Errorf("get live cell: %w", err)
	}
	if result == nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("cell not live: %x:%d", outPoint.TxHash, outPoint.Index))
	}

	var cell types.CellWithData
	if err := decodeResult(result, &cell); err != nil {
		return nil, err
	}
	return &cell, nil
}

// TipBlockNumber 查询当前链顶块高
func (l *Ledger) TipBlockNumber(ctx context.Context) (uint64, error) {
	result, err := l.rpc.Call(ctx, "ledger_tipBlockNumber", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("tip block number: %w", err)
	}

	var tip uint64
	if err := decodeResult(result, &tip); err != nil {
		return 0, err
	}
	return tip, nil
}

// MedianTime 查询最近区块的中位时间戳（毫秒），时间戳度量的超时用它判断成熟
func (l *Ledger) MedianTime(ctx context.Context) (uint64, error) {
	result, err := l.rpc.Call(ctx, "ledger_medianTime", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("median time: %w", err)
	}

	var median uint64
	if err := decodeResult(result, &median); err != nil {
		return 0, err
	}
	return median, nil
}

// SendTransaction 提交已签名交易，返回交易哈希
func (l *Ledger) SendTransaction(ctx context.Context, tx *types.Transaction) (string, error) {
	encoded, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("marshal transaction: %w", err)
	}

	result, err := l.rpc.SendRawTransaction(ctx, hex.EncodeToString(encoded))
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	if !result.Accepted {
		return "", NewTxRejectedError(result.Reason)
	}

	if l.logger != nil {
		l.logger.Info("transaction accepted", "tx_hash", result.TxHash)
	}
	return result.TxHash, nil
}
