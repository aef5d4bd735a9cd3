package lipmaa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinkseqKnownValues(t *testing.T) {
	cases := map[uint64]uint64{
		1:  0,
		2:  1,
		3:  2,
		4:  1,
		5:  4,
		6:  5,
		7:  4,
		13: 4,
		14: 13,
	}
	for n, want := range cases {
		require.Equalf(t, want, Linkseq(n), "Linkseq(%d)", n)
	}
}

func TestCertPoolMatchesWorkedExample(t *testing.T) {
	// The spec's scenario 3 (14 sequential appends) states that
	// compact() removes the complement of cert_pool(14) ∪ {14}
	// within [1, 14], leaving {1, 4, 13, 14}.
	require.Equal(t, []uint64{13, 4, 1}, CertPool(14))
}

func TestCertPoolStrictlyDecreasing(t *testing.T) {
	for n := uint64(2); n < 2000; n++ {
		pool := CertPool(n)
		prev := n
		for _, s := range pool {
			require.Less(t, s, prev)
			prev = s
		}
		if len(pool) > 0 {
			require.Equal(t, uint64(1), pool[len(pool)-1])
		}
	}
}

func TestCertPoolEmptyForGenesis(t *testing.T) {
	require.Empty(t, CertPool(1))
}
