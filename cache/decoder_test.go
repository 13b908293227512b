package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeAddrRoundTripsThroughAddrOf(t *testing.T) {
	p := DefaultL2Policy()

	addrs := []uint32{0, 1, 63, 64, 65, 1 << 20, 0xFFFFFFFF}
	for _, a := range addrs {
		tag, setID, _ := decodeAddr(p, a)
		got := addrOf(p, tag, setID)
		want := blockAddr(p, a)
		require.Equalf(t, want, got, "addr 0x%x", a)
	}
}

func TestDecodeAddrOffsetIsBoundedByBlockSize(t *testing.T) {
	p := DefaultL1Policy()

	_, _, offset := decodeAddr(p, 12345)
	require.Less(t, offset, p.BlockSize)
}

func TestDecodeAddrSetIDIsBoundedByBlockCount(t *testing.T) {
	p := DefaultL2Policy()
	numSets := p.BlockNum / p.Associativity

	for _, a := range []uint32{0, 1000, 999999} {
		_, setID, _ := decodeAddr(p, a)
		require.Less(t, setID, numSets)
	}
}

func TestLog2OfPowersOfTwo(t *testing.T) {
	cases := map[uint32]uint32{1: 0, 2: 1, 4: 2, 64: 6, 1024: 10}
	for v, want := range cases {
		require.Equal(t, want, log2(v))
	}
}

func TestPolicyValidateRejectsBadGeometry(t *testing.T) {
	bad := []Policy{
		{CacheSize: 100, BlockSize: 64, BlockNum: 2, Associativity: 1},
		{CacheSize: 128, BlockSize: 3, BlockNum: 42, Associativity: 1},
		{CacheSize: 128, BlockSize: 64, BlockNum: 3, Associativity: 1},
		{CacheSize: 128, BlockSize: 64, BlockNum: 2, Associativity: 0},
		{CacheSize: 192, BlockSize: 64, BlockNum: 3, Associativity: 2},
	}
	for _, p := range bad {
		require.Error(t, p.validate())
	}
}

func TestPolicyValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, DefaultL1Policy().validate())
	require.NoError(t, DefaultL2Policy().validate())
	require.NoError(t, DefaultL3Policy().validate())
	require.NoError(t, DefaultSingleLevelPolicy().validate())
	require.NoError(t, VictimPolicy().validate())
}
