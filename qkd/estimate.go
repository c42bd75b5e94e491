package qkd

import (
	"github.com/alan-christopher/qkdsim/qkd/bitmap"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// QBER returns the fraction of positions at which a and b differ. Comparing
// nothing proves nothing, so the QBER of empty sequences is 1.
func QBER(a, b bitmap.Dense) float64 {
	if a.Size() == 0 || b.Size() == 0 {
		return 1
	}
	return float64(bitmap.CountOnes(bitmap.XOr(a, b))) / float64(max(a.Size(), b.Size()))
}

// ExpectedCorrelation returns the correlation quantum mechanics predicts for
// analyzers at a and b. A negative value means the two sides' bits are
// expected to disagree.
func ExpectedCorrelation(a, b photon.Angle) float64 {
	return photon.Correlation(a, b)
}

// sample discloses proportion of bits for error estimation. It shuffles a
// copy of bits with a generator seeded from seed and splits it into the part
// that stays secret and the part that is announced. Both parties sampling
// with the same seed select the same positions.
func sample(bits bitmap.Dense, proportion float64, seed int64) (unsampled, sampled bitmap.Dense) {
	shuffled := bits.Clone()
	shuffled.Shuffle(stream(seed, "sample", 0))
	n := shuffled.Size()
	k := int(proportion * float64(n))
	unsampled = bitmap.Prefix(shuffled, n-k)
	sampled, err := bitmap.Slice(shuffled, n-k, n)
	if err != nil {
		return unsampled, bitmap.Empty()
	}
	return unsampled, sampled
}
