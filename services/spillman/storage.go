package spillman

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/types"
	"github.com/cellpay/spillman-sdk-go/utils"
)

// ChannelRecord 通道的本地持久化记录
//
// 双方各自维护：用户侧保存预签退款交易以备超时取回；商户侧保存
// 金额最高的承诺以备结算。记录按出资交易哈希落盘为独立 JSON 文件。
type ChannelRecord struct {
	// TxHash 出资交易哈希（记录主键）
	TxHash string `json:"tx_hash"`

	// Cell 通道 cell
	Cell types.CellWithData `json:"cell"`

	// Args 通道锁参数（可据此还原 channel.Parameters）
	Args hexutil.Bytes `json:"args"`

	// Refund 商户预签的退款交易（用户侧保存）
	Refund *types.Transaction `json:"refund,omitempty"`

	// Commitment 当前持有的金额最高承诺（商户侧保存）
	Commitment *types.Transaction `json:"commitment,omitempty"`

	// Payment 承诺中的累计支付容量
	Payment uint64 `json:"payment"`

	// TokenPayment 承诺中的累计支付代币数量（代币通道）
	TokenPayment *big.Int `json:"token_payment,omitempty"`

	// UpdatedAt 最近一次写入时间
	UpdatedAt time.Time `json:"updated_at"`
}

// Parameters 从记录的锁参数还原通道参数
func (r *ChannelRecord) Parameters() (*channel.Parameters, error) {
	return channel.ParseArgs(r.Args)
}

// Store 通道记录的文件存储
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore 在指定目录创建（或打开）通道记录存储
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Put 写入（或覆盖）一条通道记录
func (s *Store) Put(record *ChannelRecord) error {
	if record == nil || record.TxHash == "" {
		return fmt.Errorf("record requires a funding transaction hash")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(record)
}

// Get 按出资交易哈希读取记录
func (s *Store) Get(txHash string) (*ChannelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(txHash)
}

// RecordCommitment 更新商户侧持有的承诺
//
// 金额只增不减：低于已存承诺的支付金额直接拒绝，防止误存旧承诺
func (s *Store) RecordCommitment(txHash string, tx *types.Transaction, payment uint64, tokenPayment *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.read(txHash)
	if err != nil {
		return err
	}
	if payment < record.Payment {
		return fmt.Errorf("commitment payment %d below stored %d", payment, record.Payment)
	}
	if tokenPayment != nil && record.TokenPayment != nil && tokenPayment.Cmp(record.TokenPayment) < 0 {
		return fmt.Errorf("commitment token payment %s below stored %s", tokenPayment, record.TokenPayment)
	}

	record.Commitment = tx
	record.Payment = payment
	record.TokenPayment = tokenPayment
	return s.write(record)
}

// List 列出全部记录的出资交易哈希
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}
	var hashes []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		hashes = append(hashes, "0x"+strings.TrimSuffix(e.Name(), ".json"))
	}
	return hashes, nil
}

// Delete 删除一条记录（通道结算或退款完成后清理）
func (s *Store) Delete(txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(txHash)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("channel record %s not found", txHash)
		}
		return fmt.Errorf("delete channel record: %w", err)
	}
	return nil
}

func (s *Store) path(txHash string) string {
	name := strings.TrimPrefix(txHash, "0x")
	return filepath.Join(s.dir, name+".json")
}

// write 原子落盘，避免写一半的记录
func (s *Store) write(record *ChannelRecord) error {
	record.UpdatedAt = time.Now().UTC()
	if err := utils.WriteJSONFileAtomic(s.path(record.TxHash), record, 0o600); err != nil {
		return fmt.Errorf("write channel record: %w", err)
	}
	return nil
}

func (s *Store) read(txHash string) (*ChannelRecord, error) {
	var record ChannelRecord
	if err := utils.ReadJSONFile(s.path(txHash), &record); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("channel record %s not found", txHash)
		}
		return nil, err
	}
	return &record, nil
}
