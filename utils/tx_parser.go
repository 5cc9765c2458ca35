package utils

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/cellpay/spillman-sdk-go/types"
)

// ParsedTx 解析后的交易概要
type ParsedTx struct {
	Hash    string
	Inputs  []ParsedInput
	Outputs []ParsedOutput
}

// ParsedInput 解析后的输入
type ParsedInput struct {
	TxHash      string
	OutputIndex uint32
	Since       uint64
}

// ParsedOutput 解析后的输出
type ParsedOutput struct {
	Index       uint32
	Owner       []byte   // 锁脚本参数（单签锁时为 20 字节身份哈希）
	Capacity    uint64   // shannon
	TokenAmount *big.Int // 代币数量（无类型脚本或数据不足 16 字节时为 nil）
	Outpoint    string   // 格式: "txHash:index"
}

// ParseTx 解析交易概要
//
// **功能**：
// 把 cell 模型交易展开成便于检视的输入输出列表：每个输出附带锁参数、
// 容量、代币数量与出点。商户收到承诺后用它核对自己名下的收款输出。
func ParseTx(tx *types.Transaction) *ParsedTx {
	hash := hex.EncodeToString(tx.Hash())

	parsed := &ParsedTx{Hash: "0x" + hash}

	for _, input := range tx.Inputs {
		parsed.Inputs = append(parsed.Inputs, ParsedInput{
			TxHash:      "0x" + hex.EncodeToString(input.PreviousOutput.TxHash),
			OutputIndex: input.PreviousOutput.Index,
			Since:       input.Since,
		})
	}

	for i := range tx.Outputs {
		output := ParsedOutput{
			Index:    uint32(i),
			Capacity: tx.Outputs[i].Capacity,
			Outpoint: GetOutpoint(hash, uint32(i)),
		}
		if tx.Outputs[i].Lock != nil {
			output.Owner = tx.Outputs[i].Lock.Args
		}
		if tx.Outputs[i].Type != nil && i < len(tx.OutputsData) {
			if amount, err := types.DecodeTokenAmount(tx.OutputsData[i]); err == nil {
				output.TokenAmount = amount
			}
		}
		parsed.Outputs = append(parsed.Outputs, output)
	}

	return parsed
}

// FindOutputsByOwner 查找指定身份名下的输出
func FindOutputsByOwner(outputs []ParsedOutput, owner []byte) []ParsedOutput {
	var result []ParsedOutput
	for _, output := range outputs {
		if len(output.Owner) == 20 && len(owner) == 20 && string(output.Owner) == string(owner) {
			result = append(result, output)
		}
	}
	return result
}

// SumCapacityByOwner 汇总指定身份名下的输出容量
func SumCapacityByOwner(outputs []ParsedOutput, owner []byte) uint64 {
	var total uint64
	for _, output := range FindOutputsByOwner(outputs, owner) {
		total += output.Capacity
	}
	return total
}

// SumTokenByOwner 汇总指定身份名下的代币数量
func SumTokenByOwner(outputs []ParsedOutput, owner []byte) *big.Int {
	total := big.NewInt(0)
	for _, output := range FindOutputsByOwner(outputs, owner) {
		if output.TokenAmount != nil {
			total.Add(total, output.TokenAmount)
		}
	}
	return total
}

// GetOutpoint 生成 outpoint 字符串
func GetOutpoint(txHash string, index uint32) string {
	txHashClean := strings.TrimPrefix(txHash, "0x")
	return fmt.Sprintf("%s:%d", txHashClean, index)
}
