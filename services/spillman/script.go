package spillman

import (
	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/types"
)

// channelLock 按通道参数构造通道锁脚本
func (s *spillmanService) channelLock(params *channel.Parameters) *types.Script {
	return &types.Script{
		CodeHash: s.cfg.ChannelLockCodeHash,
		HashType: s.cfg.ChannelLockHashType,
		Args:     params.EncodeArgs(),
	}
}

// environment 由服务配置派生验证环境
func (s *spillmanService) environment() *channel.Environment {
	return &channel.Environment{
		SighashCodeHash:  s.cfg.SighashCodeHash,
		SighashHashType:  s.cfg.SighashHashType,
		MultisigCodeHash: s.cfg.MultisigCodeHash,
		MultisigHashType: s.cfg.MultisigHashType,
	}
}

// merchantRefundLock 商户退款输出的锁：单签商户用单签锁，多签商户用多签锁
func (s *spillmanService) merchantRefundLock(params *channel.Parameters) *types.Script {
	if params.Algorithm.IsMultisig() {
		return s.cfg.MultisigLock(params.MerchantIdentity)
	}
	return s.cfg.SighashLock(params.MerchantIdentity)
}

// channelCellDeps 通道交易需要引用的依赖 cell
func (s *spillmanService) channelCellDeps(token bool) []types.CellDep {
	deps := []types.CellDep{s.cfg.ChannelLockDep, s.cfg.SighashDep}
	if s.cfg.AuthDep != nil {
		deps = append(deps, *s.cfg.AuthDep)
	}
	if token && s.cfg.Token != nil {
		deps = append(deps, s.cfg.Token.Dep)
	}
	return deps
}

// feeRate 请求费率与配置默认值的取舍
func (s *spillmanService) feeRate(requested uint64) uint64 {
	if requested > 0 {
		return requested
	}
	return s.cfg.FeeRate()
}

// estimateFee 按交易体积估算手续费（向上取整）
func estimateFee(size, feeRate uint64) uint64 {
	return (size*feeRate + 999) / 1000
}
