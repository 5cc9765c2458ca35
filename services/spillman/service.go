package spillman

import (
	"context"
	"math/big"

	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/client"
	"github.com/cellpay/spillman-sdk-go/services"
	"github.com/cellpay/spillman-sdk-go/types"
	"github.com/cellpay/spillman-sdk-go/wallet"
)

// Service 单向支付通道业务服务接口
//
// 协议角色：用户（付款方）出资开通道并逐笔签署承诺；商户（收款方）
// 持有最新承诺，结算时补签广播；超时后用户凭预签退款交易取回资金。
type Service interface {
	// BuildFunding 构建出资交易草稿（单方出资，或共同出资的第一步）
	// wallet 参数可选：如果提供则使用，否则使用服务实例的默认 Wallet
	BuildFunding(ctx context.Context, req *FundingRequest, w ...wallet.Wallet) (*FundingDraft, error)

	// AddFunding 共同出资的第二步：在对方的草稿上追加出资，扩展通道 cell 容量
	AddFunding(ctx context.Context, draft *FundingDraft, req *ContributionRequest, w ...wallet.Wallet) (*FundingDraft, error)

	// SignFunding 签名草稿中属于自己的输入（共同出资时双方各调用一次）
	SignFunding(draft *FundingDraft, w ...wallet.Wallet) error

	// BroadcastFunding 广播出资交易，返回通道 cell 句柄
	BroadcastFunding(ctx context.Context, draft *FundingDraft) (*ChannelHandle, error)

	// BuildCommitment 用户构建并签署一份支付承诺（链下递交给商户）
	BuildCommitment(req *CommitmentRequest, w ...wallet.Wallet) (*types.Transaction, error)

	// CompleteSettlement 商户对承诺补签，得到可广播的结算交易
	// 多签商户传入 threshold 把钥匙对应的多个 wallet
	CompleteSettlement(req *SettlementRequest, w ...wallet.Wallet) (*types.Transaction, error)

	// BuildRefund 构建退款交易并由商户预签（通道建立时执行）
	BuildRefund(req *RefundRequest, w ...wallet.Wallet) (*types.Transaction, error)

	// CounterSignRefund 用户在超时后补签退款交易
	CounterSignRefund(tx *types.Transaction, params *channel.Parameters, w ...wallet.Wallet) error

	// Broadcast 广播已完成的交易
	Broadcast(ctx context.Context, tx *types.Transaction) (string, error)

	// Verify 本地运行与链上一致的验证策略（广播前自检）
	Verify(tx *types.Transaction, resolvedInputs []types.CellWithData, lock *types.Script) error
}

// spillmanService 通道服务实现
type spillmanService struct {
	ledger *client.Ledger
	cfg    *services.Config
	wallet wallet.Wallet // 可选：默认 Wallet
}

// NewService 创建通道服务（不带 Wallet）
func NewService(ledger *client.Ledger, cfg *services.Config) Service {
	return &spillmanService{
		ledger: ledger,
		cfg:    cfg,
	}
}

// NewServiceWithWallet 创建带默认 Wallet 的通道服务
func NewServiceWithWallet(ledger *client.Ledger, cfg *services.Config, w wallet.Wallet) Service {
	return &spillmanService{
		ledger: ledger,
		cfg:    cfg,
		wallet: w,
	}
}

// getWallet 获取 Wallet（优先使用参数，其次使用默认 Wallet）
func (s *spillmanService) getWallet(wallets ...wallet.Wallet) wallet.Wallet {
	if len(wallets) > 0 && wallets[0] != nil {
		return wallets[0]
	}
	return s.wallet
}

// getWallets 获取全部签名 Wallet（多签场景）
func (s *spillmanService) getWallets(wallets ...wallet.Wallet) []wallet.Wallet {
	if len(wallets) > 0 {
		return wallets
	}
	if s.wallet != nil {
		return []wallet.Wallet{s.wallet}
	}
	return nil
}

// FundingRequest 出资请求
type FundingRequest struct {
	Params      *channel.Parameters // 通道参数（双方身份、超时、算法）
	Capacity    uint64              // 本方锁入通道的容量（shannon）
	TokenAmount *big.Int            // 本方锁入的代币数量（nil 表示原生通道）
	FeeRate     uint64              // 费率（shannon/1000字节），0 取配置默认
}

// ContributionRequest 追加出资请求（共同出资第二步）
type ContributionRequest struct {
	Capacity    uint64
	TokenAmount *big.Int
	FeeRate     uint64
}

// ChannelHandle 广播出资交易后得到的通道句柄
type ChannelHandle struct {
	TxHash string             // 出资交易哈希
	Cell   types.CellWithData // 通道 cell（出资交易的输出 0）
	Params *channel.Parameters
}

// CommitmentRequest 支付承诺请求
type CommitmentRequest struct {
	ChannelCell  types.CellWithData          // 链上通道 cell
	Params       *channel.Parameters         // 通道参数
	Descriptor   *channel.MultisigDescriptor // 多签商户的描述符（单签为 nil）
	Payment      uint64                      // 累计支付容量（只增不减，最新承诺覆盖全部既往支付）
	TokenPayment *big.Int                    // 累计支付代币数量（代币通道）
	FeeRate      uint64
}

// SettlementRequest 商户结算请求
type SettlementRequest struct {
	Transaction *types.Transaction          // 用户签好的承诺
	Params      *channel.Parameters         // 通道参数
	Descriptor  *channel.MultisigDescriptor // 多签商户的描述符（单签为 nil）
}

// RefundRequest 退款交易请求
type RefundRequest struct {
	ChannelCell types.CellWithData
	Params      *channel.Parameters
	Descriptor  *channel.MultisigDescriptor // 多签商户（共同出资时商户退款输出用多签锁）
	CoFunded    bool                        // 商户是否出过资（决定是否有商户退款输出）
	FeeRate     uint64
}

// Verify 本地验证策略（与链上 lock 语义一致）
func (s *spillmanService) Verify(tx *types.Transaction, resolvedInputs []types.CellWithData, lock *types.Script) error {
	return s.environment().Verify(tx, resolvedInputs, lock)
}

// Broadcast 广播已完成的交易
func (s *spillmanService) Broadcast(ctx context.Context, tx *types.Transaction) (string, error) {
	return s.ledger.SendTransaction(ctx, tx)
}
