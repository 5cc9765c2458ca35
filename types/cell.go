package types

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ScriptHashType 脚本引用方式
//
// "data" 按代码哈希引用，"type" 按 type script 哈希引用（允许代码升级）
type ScriptHashType string

const (
	HashTypeData ScriptHashType = "data"
	HashTypeType ScriptHashType = "type"
)

// Script 锁定脚本 / 类型脚本
//
// cell 模型中的脚本引用：代码哈希 + 引用方式 + 参数
// Args 的语义由脚本自身定义（例如通道锁的参数布局）
type Script struct {
	CodeHash hexutil.Bytes  `json:"code_hash"` // 脚本代码哈希（32字节）
	HashType ScriptHashType `json:"hash_type"` // 引用方式
	Args     hexutil.Bytes  `json:"args"`      // 脚本参数
}

// Equal 判断两个脚本是否完全相同（代码哈希、引用方式、参数全部一致）
func (s *Script) Equal(other *Script) bool {
	if s == nil || other == nil {
		return s == other
	}
	return bytes.Equal(s.CodeHash, other.CodeHash) &&
		s.HashType == other.HashType &&
		bytes.Equal(s.Args, other.Args)
}

// OccupiedSize 脚本在 cell 中占用的字节数（代码哈希32 + 引用方式1 + 参数）
func (s *Script) OccupiedSize() uint64 {
	return 32 + 1 + uint64(len(s.Args))
}

// DepType cell 依赖的解析方式
type DepType string

const (
	DepTypeCode     DepType = "code"
	DepTypeDepGroup DepType = "dep_group"
)

// CellDep 交易引用的依赖 cell（脚本代码所在的 cell）
type CellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  DepType  `json:"dep_type"`
}

// OutPoint 指向某笔交易的某个输出
type OutPoint struct {
	TxHash hexutil.Bytes `json:"tx_hash"` // 交易哈希（32字节）
	Index  uint32        `json:"index"`   // 输出序号
}

// Equal 判断两个 OutPoint 是否相同
func (o *OutPoint) Equal(other *OutPoint) bool {
	if o == nil || other == nil {
		return o == other
	}
	return bytes.Equal(o.TxHash, other.TxHash) && o.Index == other.Index
}

// CellInput 交易输入：引用一个既有 cell，并携带成熟度约束
type CellInput struct {
	Since          uint64   `json:"since"` // 成熟度约束（0 表示无约束）
	PreviousOutput OutPoint `json:"previous_output"`
}

// CellOutput 交易输出：容量 + 锁定脚本 + 可选类型脚本
type CellOutput struct {
	Capacity uint64  `json:"capacity"` // 容量（shannon）
	Lock     *Script `json:"lock"`     // 锁定脚本（必填）
	Type     *Script `json:"type"`     // 类型脚本（可选，代币 cell 携带）
}

// CellWithData 已解析的 cell（输出 + 数据 + 位置），用于输入解析与余额收集
type CellWithData struct {
	Output   CellOutput    `json:"output"`
	Data     hexutil.Bytes `json:"data"`
	OutPoint OutPoint      `json:"out_point"`
}

// Transaction cell 模型交易
//
// 规范序列化（见 serialize.go）只覆盖 raw 部分，Witnesses 不参与签名消息
type Transaction struct {
	Version     uint32          `json:"version"`
	CellDeps    []CellDep       `json:"cell_deps"`
	HeaderDeps  []hexutil.Bytes `json:"header_deps"`
	Inputs      []CellInput     `json:"inputs"`
	Outputs     []CellOutput    `json:"outputs"`
	OutputsData []hexutil.Bytes `json:"outputs_data"`
	Witnesses   []hexutil.Bytes `json:"witnesses"`
}
