package channel

import (
	"bytes"
)

// witness 布局
//
//	placeholder[16] | unlock_type[1] | merchant_proof | user_sig[65]
//
// merchant_proof 单签为 65 字节签名；多签为描述符 {S=0,R,M,N,N×20} 接 M×65 签名。
// 占位前缀与各段长度都必须精确匹配，多余或缺失字节一律拒绝。

const (
	// SignatureSize 可恢复签名长度（r[32] | s[32] | v[1]）
	SignatureSize = 65

	// witnessHeaderSize 占位前缀16 + 解锁类型1
	witnessHeaderSize = 17

	multisigHeaderSize = 4
)

// WitnessPlaceholder witness 的固定占位前缀（16字节）
//
// 构造签名消息时双方都以该前缀开头的 witness 形态为准，逐字节校验
var WitnessPlaceholder = []byte{16, 0, 0, 0, 16, 0, 0, 0, 16, 0, 0, 0, 16, 0, 0, 0}

// UnlockType 解锁路径
type UnlockType byte

const (
	UnlockSettlement UnlockType = 0x00 // 合作结算：双方签名
	UnlockTimeout    UnlockType = 0x01 // 超时退款：双方预签 + 成熟度与输出结构检查
)

// MultisigDescriptor 商户多签描述符
//
// 编码为 {reserved=0[1], first_n[1], threshold[1], key_count[1], key_count×20}，
// 其整体 hash160 即商户身份哈希
type MultisigDescriptor struct {
	FirstN    byte     // 前 first_n 把钥匙中至少要有 first_n 个参与签名
	Threshold byte     // 需要的签名数 M
	KeyHashes [][]byte // N 把公钥的 hash160，顺序敏感
}

// Size 描述符编码长度
func (d *MultisigDescriptor) Size() int {
	return multisigHeaderSize + len(d.KeyHashes)*IdentitySize
}

// Encode 编码描述符
func (d *MultisigDescriptor) Encode() []byte {
	out := make([]byte, 0, d.Size())
	out = append(out, 0, d.FirstN, d.Threshold, byte(len(d.KeyHashes)))
	for _, kh := range d.KeyHashes {
		out = append(out, kh...)
	}
	return out
}

// ParseMultisigDescriptor 解析并校验描述符头部
func ParseMultisigDescriptor(data []byte) (*MultisigDescriptor, error) {
	if len(data) < multisigHeaderSize {
		return nil, newError(ErrInvalidMultisigDescriptor, "descriptor shorter than header: %d bytes", len(data))
	}
	reserved, firstN, threshold, keyCount := data[0], data[1], data[2], data[3]
	if reserved != 0 {
		return nil, newError(ErrInvalidMultisigDescriptor, "reserved byte %d", reserved)
	}
	if threshold == 0 || keyCount == 0 || threshold > keyCount || firstN > threshold {
		return nil, newError(ErrInvalidMultisigDescriptor, "first_n=%d threshold=%d key_count=%d", firstN, threshold, keyCount)
	}
	need := multisigHeaderSize + int(keyCount)*IdentitySize
	if len(data) < need {
		return nil, newError(ErrInvalidMultisigDescriptor, "descriptor truncated: %d bytes, need %d", len(data), need)
	}

	d := &MultisigDescriptor{
		FirstN:    firstN,
		Threshold: threshold,
		KeyHashes: make([][]byte, keyCount),
	}
	for i := 0; i < int(keyCount); i++ {
		start := multisigHeaderSize + i*IdentitySize
		d.KeyHashes[i] = append([]byte(nil), data[start:start+IdentitySize]...)
	}
	return d, nil
}

// Witness 解析后的通道 witness
type Witness struct {
	UnlockType         UnlockType
	Descriptor         *MultisigDescriptor // 多签时非空
	MerchantSignatures [][]byte            // 单签1个，多签 threshold 个（可为全零槽位）
	UserSignature      []byte
}

// ParseWitness 按算法解析 witness，所有长度必须精确匹配
func ParseWitness(data []byte, algorithm Algorithm) (*Witness, error) {
	if len(data) < witnessHeaderSize {
		return nil, newError(ErrWitnessLength, "witness shorter than header: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(WitnessPlaceholder)], WitnessPlaceholder) {
		return nil, newError(ErrMalformedPlaceholder, "prefix %x", data[:len(WitnessPlaceholder)])
	}

	w := &Witness{UnlockType: UnlockType(data[len(WitnessPlaceholder)])}
	switch w.UnlockType {
	case UnlockSettlement, UnlockTimeout:
	default:
		return nil, newError(ErrInvalidUnlockType, "unlock type byte %#x", data[len(WitnessPlaceholder)])
	}

	body := data[witnessHeaderSize:]

	if algorithm.IsMultisig() {
		desc, err := ParseMultisigDescriptor(body)
		if err != nil {
			return nil, err
		}
		w.Descriptor = desc
		body = body[desc.Size():]
		need := int(desc.Threshold)*SignatureSize + SignatureSize
		if len(body) != need {
			return nil, newError(ErrWitnessLength, "multisig body %d bytes, want %d", len(body), need)
		}
		for i := 0; i < int(desc.Threshold); i++ {
			w.MerchantSignatures = append(w.MerchantSignatures,
				append([]byte(nil), body[i*SignatureSize:(i+1)*SignatureSize]...))
		}
		w.UserSignature = append([]byte(nil), body[int(desc.Threshold)*SignatureSize:]...)
		return w, nil
	}

	if len(body) != 2*SignatureSize {
		return nil, newError(ErrWitnessLength, "single-sig body %d bytes, want %d", len(body), 2*SignatureSize)
	}
	w.MerchantSignatures = [][]byte{append([]byte(nil), body[:SignatureSize]...)}
	w.UserSignature = append([]byte(nil), body[SignatureSize:]...)
	return w, nil
}

// Encode 编码 witness（商户槽位允许为全零占位）
func (w *Witness) Encode() []byte {
	out := make([]byte, 0, witnessHeaderSize)
	out = append(out, WitnessPlaceholder...)
	out = append(out, byte(w.UnlockType))
	if w.Descriptor != nil {
		out = append(out, w.Descriptor.Encode()...)
	}
	for _, sig := range w.MerchantSignatures {
		out = append(out, sig...)
	}
	out = append(out, w.UserSignature...)
	return out
}

// MerchantProofOffset 商户签名区在 witness 中的起始偏移，用于结算时拼接签名
func (w *Witness) MerchantProofOffset() int {
	offset := witnessHeaderSize
	if w.Descriptor != nil {
		offset += w.Descriptor.Size()
	}
	return offset
}

// MerchantSlotEmpty 商户签名槽位是否仍为全零占位
func (w *Witness) MerchantSlotEmpty() bool {
	for _, sig := range w.MerchantSignatures {
		for _, b := range sig {
			if b != 0 {
				return false
			}
		}
	}
	return true
}

// NewWitnessTemplate 构造商户槽位全零的 witness 模板（用户先行签名时使用）
func NewWitnessTemplate(unlockType UnlockType, desc *MultisigDescriptor) *Witness {
	slots := 1
	if desc != nil {
		slots = int(desc.Threshold)
	}
	w := &Witness{
		UnlockType: unlockType,
		Descriptor: desc,
	}
	for i := 0; i < slots; i++ {
		w.MerchantSignatures = append(w.MerchantSignatures, make([]byte, SignatureSize))
	}
	w.UserSignature = make([]byte, SignatureSize)
	return w
}
