package channel

import (
	"crypto/sha256"

	"github.com/cellpay/spillman-sdk-go/types"
)

// CanonicalMessage 计算通道签名消息
//
// 对 raw 交易（不含 witnesses）做规范序列化后取 SHA-256，序列化前清空 cell deps：
// 依赖 cell 的位置可能随部署环境变化，不应影响双方各自计算出的消息。
func CanonicalMessage(tx *types.Transaction) []byte {
	stripped := *tx
	stripped.CellDeps = nil
	stripped.Witnesses = nil
	h := sha256.Sum256(stripped.SerializeRaw())
	return h[:]
}
