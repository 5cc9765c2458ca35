package services

import "github.com/cellpay/spillman-sdk-go/types"

// Config 统一的业务服务配置结构，为各个具体 Service 提供脚本代码哈希、依赖 cell 等运行时参数。
//
// **设计目的**：
// - 避免在各个 service 内部硬编码脚本代码哈希 / 依赖 cell 位置
// - 保持与账本协议的解耦：验证策略只关心输入输出，部署参数由 SDK 使用方提供
//
// **说明**：
// - 代码哈希统一使用 32 字节原始切片；依赖 cell 用 OutPoint 定位
// - Token 配置可选，未提供时按原生 capacity 通道处理
type Config struct {
	// 通道锁脚本代码哈希（32 字节）与依赖 cell
	ChannelLockCodeHash []byte
	ChannelLockHashType types.ScriptHashType
	ChannelLockDep      types.CellDep

	// 标准单签锁
	SighashCodeHash []byte
	SighashHashType types.ScriptHashType
	SighashDep      types.CellDep

	// 标准多签锁（商户多签通道使用）
	MultisigCodeHash []byte
	MultisigHashType types.ScriptHashType
	MultisigDep      types.CellDep

	// 签名认证依赖 cell（通道锁执行签名恢复所需）
	AuthDep *types.CellDep

	// Token 配置（可选）
	Token *TokenConfig

	// DefaultFeeRate 默认费率（shannon / 1000 字节），0 表示取 1000
	DefaultFeeRate uint64
}

// TokenConfig 同质化代币配置
type TokenConfig struct {
	// 代币类型脚本
	CodeHash []byte
	HashType types.ScriptHashType
	Args     []byte

	// 类型脚本代码的依赖 cell
	Dep types.CellDep
}

// TokenScript 构造代币类型脚本
func (c *TokenConfig) TokenScript() *types.Script {
	return &types.Script{
		CodeHash: c.CodeHash,
		HashType: c.HashType,
		Args:     c.Args,
	}
}

// FeeRate 返回生效的费率
func (c *Config) FeeRate() uint64 {
	if c.DefaultFeeRate == 0 {
		return 1000
	}
	return c.DefaultFeeRate
}

// SighashLock 构造某个身份的标准单签锁
func (c *Config) SighashLock(identity []byte) *types.Script {
	return &types.Script{
		CodeHash: c.SighashCodeHash,
		HashType: c.SighashHashType,
		Args:     identity,
	}
}

// MultisigLock 构造某个描述符哈希的标准多签锁
func (c *Config) MultisigLock(descriptorHash []byte) *types.Script {
	return &types.Script{
		CodeHash: c.MultisigCodeHash,
		HashType: c.MultisigHashType,
		Args:     descriptorHash,
	}
}
