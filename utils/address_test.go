package utils

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	identities := [][]byte{
		make([]byte, 20),
		bytes.Repeat([]byte{0xFF}, 20),
		{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0, 0x11, 0x22,
			0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, 0xCC},
	}

	for _, identity := range identities {
		addr, err := AddressBytesToBase58(identity)
		require.NoError(t, err)
		require.NotEmpty(t, addr)

		decoded, err := AddressBase58ToBytes(addr)
		require.NoError(t, err)
		require.Equal(t, identity, decoded)
	}
}

func TestAddressBytesToBase58BadLength(t *testing.T) {
	for _, identity := range [][]byte{nil, {}, make([]byte, 19), make([]byte, 21), make([]byte, 100)} {
		_, err := AddressBytesToBase58(identity)
		require.Error(t, err, "length %d", len(identity))
	}
}

func TestAddressBase58ToBytesRejectsGarbage(t *testing.T) {
	for _, addr := range []string{"", "0OIl", base58.Encode(make([]byte, 20))} {
		_, err := AddressBase58ToBytes(addr)
		require.Error(t, err, "address %q", addr)
	}
}

func TestAddressBase58ToBytesBadChecksum(t *testing.T) {
	addr, err := AddressBytesToBase58(make([]byte, 20))
	require.NoError(t, err)

	decoded := base58.Decode(addr)
	require.Len(t, decoded, 25)
	decoded[24] ^= 0xFF

	_, err = AddressBase58ToBytes(base58.Encode(decoded))
	require.ErrorContains(t, err, "checksum")
}

func TestAddressBase58ToBytesWrongVersion(t *testing.T) {
	addr, err := AddressBytesToBase58(make([]byte, 20))
	require.NoError(t, err)

	// 换版本字节并重算校验和，只留下版本错误这一个问题
	decoded := base58.Decode(addr)
	require.Len(t, decoded, 25)
	decoded[0] = 0x00
	first := sha256.Sum256(decoded[:21])
	second := sha256.Sum256(first[:])
	copy(decoded[21:], second[:4])

	_, err = AddressBase58ToBytes(base58.Encode(decoded))
	require.ErrorContains(t, err, "version")
}

func TestAddressHexConversions(t *testing.T) {
	const hexAddr = "0xaabbccddeeff11223344556677889900aabbccdd"

	tests := []struct {
		name    string
		hexAddr string
		wantErr bool
	}{
		{"带 0x 前缀", hexAddr, false},
		{"不带前缀", hexAddr[2:], false},
		{"大小写混合", "0xAaBbCcDdEeFf1122334455667788990011223344", false},
		{"长度不足", "0x1234", true},
		{"非法字符", "0xGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG", true},
		{"内嵌空白", "0x01\n01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := AddressHexToBase58(tt.hexAddr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, addr)
		})
	}
}

func TestAddressHexRoundTrip(t *testing.T) {
	const original = "0xaabbccddeeff11223344556677889900aabbccdd"

	addr, err := AddressHexToBase58(original)
	require.NoError(t, err)

	back, err := AddressBase58ToHex(addr)
	require.NoError(t, err)
	require.Equal(t, original, back)
}
