package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// 规范序列化
//
// raw 交易的确定性二进制编码：双方各自独立计算，结果必须逐字节一致。
// 变长字段一律采用 u32 LE 长度前缀，集合字段先写元素个数。
// Witnesses 不属于 raw 部分，不参与编码。

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeU32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeScript(buf *bytes.Buffer, s *Script) {
	if s == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeBytes(buf, s.CodeHash)
	writeBytes(buf, []byte(s.HashType))
	writeBytes(buf, s.Args)
}

// Hash 锁/类型脚本的标识哈希（按规范序列化取 SHA-256）
func (s *Script) Hash() []byte {
	var buf bytes.Buffer
	writeScript(&buf, s)
	sum := sha256.Sum256(buf.Bytes())
	return sum[:]
}

func writeOutPoint(buf *bytes.Buffer, o *OutPoint) {
	writeBytes(buf, o.TxHash)
	writeU32(buf, o.Index)
}

// SerializeRaw 序列化交易的 raw 部分（不含 Witnesses）
func (tx *Transaction) SerializeRaw() []byte {
	var buf bytes.Buffer

	writeU32(&buf, tx.Version)

	writeU32(&buf, uint32(len(tx.CellDeps)))
	for i := range tx.CellDeps {
		writeOutPoint(&buf, &tx.CellDeps[i].OutPoint)
		writeBytes(&buf, []byte(tx.CellDeps[i].DepType))
	}

	writeU32(&buf, uint32(len(tx.HeaderDeps)))
	for _, h := range tx.HeaderDeps {
		writeBytes(&buf, h)
	}

	writeU32(&buf, uint32(len(tx.Inputs)))
	for i := range tx.Inputs {
		writeU64(&buf, tx.Inputs[i].Since)
		writeOutPoint(&buf, &tx.Inputs[i].PreviousOutput)
	}

	writeU32(&buf, uint32(len(tx.Outputs)))
	for i := range tx.Outputs {
		writeU64(&buf, tx.Outputs[i].Capacity)
		writeScript(&buf, tx.Outputs[i].Lock)
		writeScript(&buf, tx.Outputs[i].Type)
	}

	writeU32(&buf, uint32(len(tx.OutputsData)))
	for _, d := range tx.OutputsData {
		writeBytes(&buf, d)
	}

	return buf.Bytes()
}

// Hash 交易哈希：raw 部分规范序列化后取 SHA-256
func (tx *Transaction) Hash() []byte {
	h := sha256.Sum256(tx.SerializeRaw())
	return h[:]
}

// SerializedSize 估算交易上链后的完整字节数（raw + witnesses），用于手续费估算
func (tx *Transaction) SerializedSize() uint64 {
	size := uint64(len(tx.SerializeRaw()))
	for _, w := range tx.Witnesses {
		size += 4 + uint64(len(w))
	}
	return size
}
