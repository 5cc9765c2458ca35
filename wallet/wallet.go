package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// Wallet 钱包接口
//
// 通道协议的签名全部使用可恢复签名（65字节 r|s|v），验证方从签名恢复
// 公钥再比对身份哈希，witness 中不需要携带公钥
type Wallet interface {
	// Identity 获取身份哈希：压缩公钥的 hash160（20字节）
	Identity() []byte

	// PublicKey 获取压缩公钥（33字节）
	PublicKey() []byte

	// SignHash 对 32 字节哈希做可恢复签名
	SignHash(hash []byte) ([]byte, error)

	// SignMessage 对任意消息先 SHA-256 再签名
	SignMessage(msg []byte) ([]byte, error)

	// PrivateKey 获取私钥（谨慎使用）
	PrivateKey() *ecdsa.PrivateKey
}

// SimpleWallet 简单钱包实现（用于测试和开发）
type SimpleWallet struct {
	privateKey *ecdsa.PrivateKey
	identity   []byte
	createdAt  time.Time
}

// NewWallet 创建新钱包
func NewWallet() (Wallet, error) {
	// 生成 secp256k1 私钥（与链上使用的曲线保持一致）
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	return &SimpleWallet{
		privateKey: privateKey,
		identity:   deriveIdentity(privateKey),
		createdAt:  time.Now(),
	}, nil
}

// NewWalletFromPrivateKey 从私钥创建钱包
func NewWalletFromPrivateKey(privateKeyHex string) (Wallet, error) {
	// 移除0x前缀（如果有）
	privateKeyHex = hexRemovePrefix(privateKeyHex)

	privateKeyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	// 验证私钥长度（ECDSA私钥应该是32字节）
	if len(privateKeyBytes) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(privateKeyBytes))
	}

	return NewWalletFromPrivateKeyBytes(privateKeyBytes)
}

// NewWalletFromPrivateKeyBytes 从 32 字节私钥创建钱包
func NewWalletFromPrivateKeyBytes(privateKeyBytes []byte) (Wallet, error) {
	privateKey, err := ethcrypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 private key failed: %w", err)
	}

	return &SimpleWallet{
		privateKey: privateKey,
		identity:   deriveIdentity(privateKey),
		createdAt:  time.Now(),
	}, nil
}

// Identity 获取身份哈希
func (w *SimpleWallet) Identity() []byte {
	return w.identity
}

// PublicKey 获取压缩公钥
func (w *SimpleWallet) PublicKey() []byte {
	return ethcrypto.CompressPubkey(&w.privateKey.PublicKey)
}

// SignHash 对 32 字节哈希做可恢复签名
func (w *SimpleWallet) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("invalid hash length: expected 32 bytes, got %d", len(hash))
	}

	// go-ethereum 输出 r[32] | s[32] | v[1]，v 为恢复标识 0/1
	signature, err := ethcrypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign hash: %w", err)
	}
	return signature, nil
}

// SignMessage 签名消息
func (w *SimpleWallet) SignMessage(msg []byte) ([]byte, error) {
	hash := sha256.Sum256(msg)
	return w.SignHash(hash[:])
}

// PrivateKey 获取私钥
func (w *SimpleWallet) PrivateKey() *ecdsa.PrivateKey {
	return w.privateKey
}

// deriveIdentity 从私钥派生身份哈希
// 使用 secp256k1 压缩公钥的 HASH160（SHA-256 + RIPEMD-160），20 字节
// 与锁参数中的身份字段语义保持一致
func deriveIdentity(privateKey *ecdsa.PrivateKey) []byte {
	compressed := ethcrypto.CompressPubkey(&privateKey.PublicKey)

	sha := sha256.Sum256(compressed)
	r := ripemd160.New()
	_, _ = r.Write(sha[:])
	return r.Sum(nil) // 20 字节
}

// hexRemovePrefix 移除十六进制字符串的0x前缀
func hexRemovePrefix(hexStr string) string {
	if len(hexStr) >= 2 && hexStr[:2] == "0x" {
		return hexStr[2:]
	}
	return hexStr
}
