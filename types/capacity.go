package types

import (
	"fmt"
	"math/big"
)

const (
	// ShannonsPerByte 每字节容量对应的 shannon 数（1 原生单位 = 1e8 shannon）
	ShannonsPerByte uint64 = 100_000_000

	// TokenAmountSize 代币数量编码长度：cell 数据前 16 字节的小端 u128
	TokenAmountSize = 16
)

// OccupiedCapacity 计算 cell 的最小占用容量（shannon）
//
// 占用字节 = 容量字段8 + 锁定脚本(32+1+args) [+ 类型脚本(32+1+args) + 数据长度]
// 构建器产出的每个输出容量都不得低于该值，否则节点会拒绝
func OccupiedCapacity(lock *Script, typeScript *Script, dataLen int) uint64 {
	size := uint64(8) + lock.OccupiedSize()
	if typeScript != nil {
		size += typeScript.OccupiedSize() + uint64(dataLen)
	}
	return size * ShannonsPerByte
}

// EncodeTokenAmount 编码代币数量为 16 字节小端 u128
func EncodeTokenAmount(amount *big.Int) ([]byte, error) {
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("token amount must be non-negative: %s", amount)
	}
	if amount.BitLen() > 128 {
		return nil, fmt.Errorf("token amount exceeds 128 bits: %s", amount)
	}
	be := amount.Bytes()
	out := make([]byte, TokenAmountSize)
	for i, b := range be {
		out[len(be)-1-i] = b
	}
	return out, nil
}

// DecodeTokenAmount 解码 cell 数据前 16 字节的代币数量
func DecodeTokenAmount(data []byte) (*big.Int, error) {
	if len(data) < TokenAmountSize {
		return nil, fmt.Errorf("token cell data too short: %d bytes, need %d", len(data), TokenAmountSize)
	}
	be := make([]byte, TokenAmountSize)
	for i := 0; i < TokenAmountSize; i++ {
		be[i] = data[TokenAmountSize-1-i]
	}
	return new(big.Int).SetBytes(be), nil
}
