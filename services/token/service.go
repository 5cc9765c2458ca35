package token

import (
	"context"
	"math/big"

	"github.com/cellpay/spillman-sdk-go/client"
	"github.com/cellpay/spillman-sdk-go/services"
)

// Service 余额查询服务接口
//
// 出资方在开通道前用它确认名下的容量与代币是否足够
type Service interface {
	// GetBalance 查询单个身份名下的余额
	GetBalance(ctx context.Context, identity []byte) (*Balance, error)

	// GetBalances 批量查询多个身份的余额（并发执行）
	GetBalances(ctx context.Context, identities [][]byte) ([]*Balance, error)
}

// Balance 身份名下的余额
type Balance struct {
	Identity []byte   // 20 字节身份哈希
	Capacity uint64   // 全部活跃 cell 的容量（shannon）
	Token    *big.Int // 配置代币的总量（未配置代币时为 0）
	Cells    int      // 活跃 cell 数量
}

// tokenService 余额服务实现
type tokenService struct {
	ledger *client.Ledger
	cfg    *services.Config
}

// NewService 创建余额查询服务
func NewService(ledger *client.Ledger, cfg *services.Config) Service {
	return &tokenService{
		ledger: ledger,
		cfg:    cfg,
	}
}
