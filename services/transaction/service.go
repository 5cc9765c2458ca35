package transaction

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cellpay/spillman-sdk-go/client"
)

// Service 交易状态查询服务接口
//
// 出资交易落块后通道才算建立；结算与退款同样要等确认。
type Service interface {
	// GetTransaction 查询交易状态
	GetTransaction(ctx context.Context, txHash string) (*TransactionInfo, error)

	// WaitForConfirmation 阻塞等待交易获得指定确认数
	WaitForConfirmation(ctx context.Context, txHash string, confirmations uint64) (*TransactionInfo, error)
}

// transactionService 交易状态服务实现
type transactionService struct {
	ledger       *client.Ledger
	pollInterval time.Duration
}

// NewService 创建交易状态服务
func NewService(ledger *client.Ledger) Service {
	return &transactionService{
		ledger:       ledger,
		pollInterval: 2 * time.Second,
	}
}

// TransactionInfo 交易状态信息
type TransactionInfo struct {
	TxHash      string  // 交易哈希
	Status      string  // "pending" | "confirmed"
	BlockNumber *uint64 // 所在块高（已确认时）
	BlockHash   string  // 所在块哈希（已确认时）
}

// Confirmed 交易是否已落块
func (t *TransactionInfo) Confirmed() bool {
	return t.Status == "confirmed" && t.BlockNumber != nil
}

// GetTransaction 查询交易状态
func (s *transactionService) GetTransaction(ctx context.Context, txHash string) (*TransactionInfo, error) {
	if !strings.HasPrefix(txHash, "0x") {
		txHash = "0x" + txHash
	}

	raw, err := s.ledger.RPC().Call(ctx, "ledger_getTransaction", []interface{}{txHash})
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("transaction %s not found", txHash)
	}

	return decodeTransactionInfo(txHash, raw)
}

// WaitForConfirmation 阻塞等待交易获得指定确认数
//
// 按固定间隔轮询；ctx 取消时返回其错误。confirmations 为 1 表示只等落块。
func (s *transactionService) WaitForConfirmation(ctx context.Context, txHash string, confirmations uint64) (*TransactionInfo, error) {
	if confirmations == 0 {
		confirmations = 1
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		info, err := s.GetTransaction(ctx, txHash)
		if err == nil && info.Confirmed() {
			tip, tipErr := s.ledger.TipBlockNumber(ctx)
			if tipErr == nil && tip >= *info.BlockNumber+confirmations-1 {
				return info, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// decodeTransactionInfo 解码节点返回的交易状态
func decodeTransactionInfo(txHash string, raw interface{}) (*TransactionInfo, error) {
	itemMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid transaction response format: %T", raw)
	}

	info := &TransactionInfo{TxHash: txHash, Status: "pending"}

	if status, ok := itemMap["status"].(string); ok && status != "" {
		info.Status = status
	}
	info.BlockHash, _ = itemMap["block_hash"].(string)

	// 块高可能以十六进制字符串或数字返回
	if bhStr, ok := itemMap["block_number"].(string); ok {
		bhStr = strings.TrimPrefix(bhStr, "0x")
		if bh, err := strconv.ParseUint(bhStr, 16, 64); err == nil {
			info.BlockNumber = &bh
		}
	} else if bhNum, ok := itemMap["block_number"].(float64); ok {
		bh := uint64(bhNum)
		info.BlockNumber = &bh
	}

	if info.BlockNumber != nil && itemMap["status"] == nil {
		info.Status = "confirmed"
	}

	return info, nil
}
