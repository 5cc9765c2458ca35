package spillman

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellpay/spillman-sdk-go/channel"
	"github.com/cellpay/spillman-sdk-go/types"
)

func TestStoreRoundTrip(t *testing.T) {
	user := testWallet(t, 0x11)
	merchant := testWallet(t, 0x22)
	params := testParams(merchant, user, 5000, channel.AlgorithmSingle)
	svc := newTestService(&fakeRPC{}, testConfig())

	cell := channelCellAt(svc, params, 1000*unit, nil, nil)
	refund, err := svc.BuildRefund(&RefundRequest{ChannelCell: cell, Params: params}, merchant)
	require.NoError(t, err)

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	record := &ChannelRecord{
		TxHash: "0xf1e2",
		Cell:   cell,
		Args:   params.EncodeArgs(),
		Refund: refund,
	}
	require.NoError(t, store.Put(record))

	loaded, err := store.Get("0xf1e2")
	require.NoError(t, err)
	require.NotNil(t, loaded.Refund)
	require.Equal(t, refund.Hash(), loaded.Refund.Hash())

	restored, err := loaded.Parameters()
	require.NoError(t, err)
	require.Equal(t, params.UserIdentity, restored.UserIdentity)
	require.Equal(t, params.MerchantIdentity, restored.MerchantIdentity)
	require.Equal(t, params.Timeout, restored.Timeout)
}

func TestStoreCommitmentMonotonic(t *testing.T) {
	user := testWallet(t, 0x11)
	merchant := testWallet(t, 0x22)
	params := testParams(merchant, user, 5000, channel.AlgorithmSingle)
	svc := newTestService(&fakeRPC{}, testConfig())
	cell := channelCellAt(svc, params, 1000*unit, nil, nil)

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(&ChannelRecord{TxHash: "0xf1e2", Cell: cell, Args: params.EncodeArgs()}))

	build := func(payment uint64) *types.Transaction {
		tx, err := svc.BuildCommitment(&CommitmentRequest{
			ChannelCell: cell,
			Params:      params,
			Payment:     payment,
		}, user)
		require.NoError(t, err)
		return tx
	}

	require.NoError(t, store.RecordCommitment("0xf1e2", build(200*unit), 200*unit, nil))
	require.NoError(t, store.RecordCommitment("0xf1e2", build(300*unit), 300*unit, nil))

	// 金额回退的承诺拒绝落盘
	err = store.RecordCommitment("0xf1e2", build(250*unit), 250*unit, nil)
	require.ErrorContains(t, err, "below stored")

	loaded, err := store.Get("0xf1e2")
	require.NoError(t, err)
	require.Equal(t, uint64(300*unit), loaded.Payment)
}

func TestStoreTokenCommitmentMonotonic(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(&ChannelRecord{TxHash: "0xaa"}))

	require.NoError(t, store.RecordCommitment("0xaa", nil, 100*unit, big.NewInt(500)))
	err = store.RecordCommitment("0xaa", nil, 100*unit, big.NewInt(400))
	require.ErrorContains(t, err, "below stored")
}

func TestStoreListDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(&ChannelRecord{TxHash: "0xaa"}))
	require.NoError(t, store.Put(&ChannelRecord{TxHash: "0xbb"}))

	hashes, err := store.List()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"0xaa", "0xbb"}, hashes)

	require.NoError(t, store.Delete("0xaa"))
	_, err = store.Get("0xaa")
	require.ErrorContains(t, err, "not found")
}
