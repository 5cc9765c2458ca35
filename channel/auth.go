package channel

import (
	"bytes"
	"crypto/sha256"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// Hash160 身份哈希：压缩公钥（或多签描述符）先 SHA-256 再 RIPEMD-160
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sha[:])
	return h.Sum(nil)
}

// recoverKeyHash 从可恢复签名还原签名者压缩公钥的 hash160
func recoverKeyHash(message, sig []byte) ([]byte, error) {
	if len(sig) != SignatureSize {
		return nil, newError(ErrAuthentication, "signature length %d", len(sig))
	}
	pub, err := ethcrypto.SigToPub(message, sig)
	if err != nil {
		return nil, err
	}
	return Hash160(ethcrypto.CompressPubkey(pub)), nil
}

// VerifySingleSignature 校验单签：恢复出的公钥哈希必须等于给定身份
//
// 任何失败（格式、恢复、哈希不匹配）都只返回认证失败，不区分原因
func VerifySingleSignature(message, sig, identity []byte) error {
	keyHash, err := recoverKeyHash(message, sig)
	if err != nil || !bytes.Equal(keyHash, identity) {
		return ErrAuthentication
	}
	return nil
}

// VerifyMultisig 校验商户多签
//
// 描述符整体 hash160 必须等于商户身份哈希；每个签名必须恢复到描述符中
// 一把尚未匹配过的钥匙（同一把钥匙重复签名只计一次）；有效签名数必须
// 达到 threshold，且前 first_n 把钥匙中至少有 first_n 把参与
func VerifyMultisig(message []byte, desc *MultisigDescriptor, sigs [][]byte, identity []byte) error {
	if !bytes.Equal(Hash160(desc.Encode()), identity) {
		return newError(ErrInvalidMultisigDescriptor, "descriptor hash does not match merchant identity")
	}

	matched := make([]bool, len(desc.KeyHashes))
	valid := 0
	firstN := 0
	for _, sig := range sigs {
		keyHash, err := recoverKeyHash(message, sig)
		if err != nil {
			continue
		}
		for i, kh := range desc.KeyHashes {
			if matched[i] || !bytes.Equal(keyHash, kh) {
				continue
			}
			matched[i] = true
			valid++
			if i < int(desc.FirstN) {
				firstN++
			}
			break
		}
	}

	if valid < int(desc.Threshold) {
		return newError(ErrInsufficientSignatures, "%d valid of %d required", valid, desc.Threshold)
	}
	if firstN < int(desc.FirstN) {
		return newError(ErrInsufficientSignatures, "%d of the first %d keys signed", firstN, desc.FirstN)
	}
	return nil
}
