package channel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func validSingleWitness() []byte {
	w := &Witness{
		UnlockType:         UnlockSettlement,
		MerchantSignatures: [][]byte{bytes.Repeat([]byte{0xAA}, SignatureSize)},
		UserSignature:      bytes.Repeat([]byte{0xBB}, SignatureSize),
	}
	return w.Encode()
}

func validMultisigWitness(threshold, keyCount byte) []byte {
	desc := &MultisigDescriptor{
		FirstN:    0,
		Threshold: threshold,
		KeyHashes: make([][]byte, keyCount),
	}
	for i := range desc.KeyHashes {
		desc.KeyHashes[i] = bytes.Repeat([]byte{byte(i + 1)}, IdentitySize)
	}
	w := &Witness{
		UnlockType: UnlockTimeout,
		Descriptor: desc,
	}
	for i := byte(0); i < threshold; i++ {
		w.MerchantSignatures = append(w.MerchantSignatures, bytes.Repeat([]byte{0xAA}, SignatureSize))
	}
	w.UserSignature = bytes.Repeat([]byte{0xBB}, SignatureSize)
	return w.Encode()
}

func TestParseWitnessSingleRoundTrip(t *testing.T) {
	data := validSingleWitness()
	require.Len(t, data, 17+65+65)

	w, err := ParseWitness(data, AlgorithmSingle)
	require.NoError(t, err)
	require.Equal(t, UnlockSettlement, w.UnlockType)
	require.Len(t, w.MerchantSignatures, 1)
	require.Equal(t, data, w.Encode())
}

func TestParseWitnessMultisigRoundTrip(t *testing.T) {
	data := validMultisigWitness(2, 3)
	require.Len(t, data, 17+4+3*20+2*65+65)

	w, err := ParseWitness(data, AlgorithmMultisig)
	require.NoError(t, err)
	require.NotNil(t, w.Descriptor)
	require.Len(t, w.MerchantSignatures, 2)
	require.Equal(t, data, w.Encode())
	require.Equal(t, 17+4+3*20, w.MerchantProofOffset())
}

func TestParseWitnessRejects(t *testing.T) {
	tamperPlaceholder := validSingleWitness()
	tamperPlaceholder[0] = 0x17

	badUnlock := validSingleWitness()
	badUnlock[16] = 0x02

	tests := []struct {
		name      string
		data      []byte
		algorithm Algorithm
		want      *Error
	}{
		{"空 witness", nil, AlgorithmSingle, ErrWitnessLength},
		{"占位前缀被改", tamperPlaceholder, AlgorithmSingle, ErrMalformedPlaceholder},
		{"解锁类型非法", badUnlock, AlgorithmSingle, ErrInvalidUnlockType},
		{"单签缺一个字节", validSingleWitness()[:146], AlgorithmSingle, ErrWitnessLength},
		{"单签多一个字节", append(validSingleWitness(), 0), AlgorithmSingle, ErrWitnessLength},
		{"多签签名数与阈值不符", validMultisigWitness(2, 3)[:len(validMultisigWitness(2, 3))-65], AlgorithmMultisig, ErrWitnessLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWitness(tt.data, tt.algorithm)
			require.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseMultisigDescriptorRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"保留字节非零", []byte{1, 0, 2, 3}},
		{"阈值为零", []byte{0, 0, 0, 3}},
		{"阈值大于钥匙数", []byte{0, 0, 4, 3}},
		{"first_n 大于阈值", []byte{0, 3, 2, 3}},
		{"钥匙列表被截断", append([]byte{0, 0, 2, 3}, make([]byte, 40)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMultisigDescriptor(tt.data)
			require.True(t, errors.Is(err, ErrInvalidMultisigDescriptor), "got %v", err)
		})
	}
}

func TestMerchantSlotEmpty(t *testing.T) {
	w := NewWitnessTemplate(UnlockSettlement, nil)
	require.True(t, w.MerchantSlotEmpty())

	w.MerchantSignatures[0][10] = 1
	require.False(t, w.MerchantSlotEmpty())
}

func TestWitnessTemplateMultisigSlots(t *testing.T) {
	desc := &MultisigDescriptor{Threshold: 3, KeyHashes: make([][]byte, 5)}
	for i := range desc.KeyHashes {
		desc.KeyHashes[i] = make([]byte, IdentitySize)
	}
	w := NewWitnessTemplate(UnlockTimeout, desc)
	require.Len(t, w.MerchantSignatures, 3)
	require.True(t, w.MerchantSlotEmpty())
}
