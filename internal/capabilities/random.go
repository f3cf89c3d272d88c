package capabilities

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
)

// CryptoRandSource draws from crypto/rand and performs an unbiased
// Fisher–Yates shuffle. This is the production RandomSource.
type CryptoRandSource struct{}

// NewCryptoRandSource returns the production randomness capability.
func NewCryptoRandSource() *CryptoRandSource {
	return &CryptoRandSource{}
}

// Shuffle permutes [0,n) uniformly. Each index i from n-1 down to 1 swaps
// with a uniform j in [0,i]; rejection-free because crypto/rand.Int is
// already uniform over the half-open range.
func (s *CryptoRandSource) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			// crypto/rand failures mean the host entropy source is gone;
			// there is no meaningful fallback for a fairness-critical draw.
			panic("capabilities: crypto/rand unavailable: " + err.Error())
		}
		swap(i, int(j.Int64()))
	}
}

// SeededRandSource is a deterministic RandomSource for tests.
type SeededRandSource struct {
	r *mrand.Rand
}

// NewSeededRandSource returns a RandomSource with reproducible output.
func NewSeededRandSource(seed int64) *SeededRandSource {
	return &SeededRandSource{r: mrand.New(mrand.NewSource(seed))}
}

// Shuffle permutes [0,n) using the seeded generator.
func (s *SeededRandSource) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}
