package qkd

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// Tsirelson is the largest CHSH value quantum mechanics allows, 2*sqrt(2).
var Tsirelson = 2 * math.Sqrt2

// ClassicalBound is the largest CHSH value a local hidden variable model can
// reach.
const ClassicalBound = 2.0

// minBellPairs is the smallest Bell test worth evaluating.
const minBellPairs = 4

// SecurityMetrics summarizes the security analysis of a run. Exactly one of
// Decoy and Bell is set, matching the scheme.
type SecurityMetrics struct {
	QBER           float64 `json:"qber"`
	Secure         bool    `json:"secure"`
	SecureFraction float64 `json:"secure_fraction"`
	// RawKeyRate and SecureKeyRate are in bits per second.
	RawKeyRate    float64        `json:"raw_key_rate"`
	SecureKeyRate float64        `json:"secure_key_rate"`
	Decoy         *DecoyAnalysis `json:"decoy,omitempty"`
	Bell          *BellAnalysis  `json:"bell,omitempty"`
}

// IntensityStats tallies the pulses of one intensity class.
type IntensityStats struct {
	Mu       float64 `json:"mu"`
	Sent     int     `json:"sent"`
	Detected int     `json:"detected"`
	// Gain is Detected/Sent.
	Gain float64 `json:"gain"`
	// Matched counts detections whose bases agreed, Errors those among them
	// whose bits did not.
	Matched int     `json:"matched"`
	Errors  int     `json:"errors"`
	QBER    float64 `json:"qber"`
}

// DecoyAnalysis is the decoy-state accounting of a prepare-and-measure run,
// indexed by photon.Intensity.
type DecoyAnalysis struct {
	Classes          [photon.NumIntensities]IntensityStats `json:"classes"`
	EstimatedEveInfo float64                               `json:"estimated_eve_info"`
	ThresholdPassed  bool                                  `json:"threshold_passed"`
}

// BellAnalysis is the outcome of the CHSH test of an entangled run.
type BellAnalysis struct {
	S float64 `json:"s"`
	// Correlations and Samples are indexed like CHSHAnglePairs.
	Correlations         [4]float64 `json:"correlations"`
	Samples              [4]int     `json:"samples"`
	Pairs                int        `json:"pairs"`
	EavesdropperDetected bool       `json:"eavesdropper_detected"`
}

// BinaryEntropy returns the Shannon entropy, in bits, of a coin that comes up
// heads with probability p.
func BinaryEntropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p*math.Log2(p) - (1-p)*math.Log2(1-p)
}

// SecureFraction returns the share of a sifted key that survives error
// correction at efficiency ecEfficiency and privacy amplification, for a
// given error rate.
func SecureFraction(qber, ecEfficiency float64) float64 {
	h := BinaryEntropy(qber)
	return math.Max(0, 1-ecEfficiency*h-h)
}

// analyzeDecoys builds the per-intensity accounting of a prepare-and-measure
// run.
func analyzeDecoys(src photon.PrepareSource, events []photon.Event, dets []photon.Detection, qber, threshold float64) *DecoyAnalysis {
	a := &DecoyAnalysis{
		EstimatedEveInfo: math.Min(1, 2*qber),
		ThresholdPassed:  qber < threshold,
	}
	for i := range a.Classes {
		a.Classes[i].Mu = src.Mu(photon.Intensity(i))
	}
	for i, ev := range events {
		c := &a.Classes[ev.Intensity]
		c.Sent++
		d := dets[i]
		if !d.Detected {
			continue
		}
		c.Detected++
		if d.Basis != ev.Basis {
			continue
		}
		c.Matched++
		if d.Bit != ev.Bit {
			c.Errors++
		}
	}
	for i := range a.Classes {
		c := &a.Classes[i]
		if c.Sent > 0 {
			c.Gain = float64(c.Detected) / float64(c.Sent)
		}
		if c.Matched > 0 {
			c.QBER = float64(c.Errors) / float64(c.Matched)
		}
	}
	return a
}

// CHSH evaluates S = |E(a,b) - E(a,b') + E(a',b) + E(a',b')| over samples.
// Settings outside CHSHAnglePairs are ignored, a setting with no samples has
// correlation 0, and fewer than four samples in total yield S = 0. S is
// clamped to [0, Tsirelson].
func CHSH(samples []BellSample) BellAnalysis {
	var products [4][]float64
	for _, s := range samples {
		for i, p := range CHSHAnglePairs {
			if s.Angles == p {
				products[i] = append(products[i], s.Product)
			}
		}
	}
	b := BellAnalysis{Pairs: len(samples)}
	for i, ps := range products {
		b.Samples[i] = len(ps)
		if len(ps) > 0 {
			b.Correlations[i] = stat.Mean(ps, nil)
		}
	}
	if len(samples) >= minBellPairs {
		e := b.Correlations
		b.S = math.Min(Tsirelson, math.Abs(e[0]-e[1]+e[2]+e[3]))
	}
	b.EavesdropperDetected = b.S < ClassicalBound
	return b
}
