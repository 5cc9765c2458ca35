package channel

import (
	"encoding/binary"
)

// 锁参数布局
//
//	merchant_identity[20] | user_identity[20] | timeout[8 LE] | algorithm_id[1]? | version[1]
//
// 49 字节（省略算法字节，按单签处理）或 50 字节两种形态，其余长度一律拒绝。

const (
	// IdentitySize 身份哈希长度（hash160）
	IdentitySize = 20

	argsSizeShort = IdentitySize*2 + 8 + 1     // 无算法字节
	argsSizeFull  = IdentitySize*2 + 8 + 1 + 1 // 含算法字节

	// Version 当前唯一支持的通道版本
	Version byte = 0
)

// Algorithm 商户侧签名算法标识
type Algorithm byte

const (
	AlgorithmSingle     Algorithm = 0 // 单签
	AlgorithmMultisig   Algorithm = 6 // 多签（旧标识）
	AlgorithmMultisigV2 Algorithm = 7 // 多签（新标识，验证逻辑与旧标识一致）
)

// IsMultisig 是否为多签算法
func (a Algorithm) IsMultisig() bool {
	return a == AlgorithmMultisig || a == AlgorithmMultisigV2
}

// Parameters 通道参数（由锁参数字段承载，双方在建立通道时约定）
type Parameters struct {
	MerchantIdentity []byte    // 商户身份哈希（20字节）：单签为公钥 hash160，多签为描述符 hash160
	UserIdentity     []byte    // 用户公钥 hash160（20字节）
	Timeout          uint64    // 退款成熟度（since 编码，含标志位）
	Algorithm        Algorithm // 商户签名算法
	Version          byte      // 通道版本
}

// ParseArgs 解析锁参数
//
// 长度必须恰好为 49 或 50 字节；版本字节必须为 0；timeout 不做取值校验
func ParseArgs(args []byte) (*Parameters, error) {
	if len(args) != argsSizeShort && len(args) != argsSizeFull {
		return nil, newError(ErrArgsLength, "got %d bytes, want %d or %d", len(args), argsSizeShort, argsSizeFull)
	}

	p := &Parameters{
		MerchantIdentity: append([]byte(nil), args[:IdentitySize]...),
		UserIdentity:     append([]byte(nil), args[IdentitySize:IdentitySize*2]...),
		Timeout:          binary.LittleEndian.Uint64(args[IdentitySize*2 : IdentitySize*2+8]),
		Algorithm:        AlgorithmSingle,
		Version:          args[len(args)-1],
	}

	if len(args) == argsSizeFull {
		p.Algorithm = Algorithm(args[argsSizeFull-2])
	}

	if p.Version != Version {
		return nil, newError(ErrUnsupportedVersion, "version byte %d", p.Version)
	}
	switch p.Algorithm {
	case AlgorithmSingle, AlgorithmMultisig, AlgorithmMultisigV2:
	default:
		return nil, newError(ErrUnsupportedAlgorithm, "algorithm id %d", p.Algorithm)
	}

	return p, nil
}

// EncodeArgs 编码锁参数（始终输出 50 字节完整形态）
func (p *Parameters) EncodeArgs() []byte {
	args := make([]byte, 0, argsSizeFull)
	args = append(args, p.MerchantIdentity...)
	args = append(args, p.UserIdentity...)
	var timeout [8]byte
	binary.LittleEndian.PutUint64(timeout[:], p.Timeout)
	args = append(args, timeout[:]...)
	args = append(args, byte(p.Algorithm))
	args = append(args, p.Version)
	return args
}
