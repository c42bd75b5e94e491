package qkd

import (
	"math"
	"testing"

	"github.com/alan-christopher/qkdsim/qkd/photon"
)

func TestBinaryEntropy(t *testing.T) {
	tcs := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 0},
		{p: 1, want: 0},
		{p: -0.5, want: 0},
		{p: 0.5, want: 1},
		{p: 0.11, want: 0.4999},
		{p: 0.25, want: 0.8113},
	}
	for _, tc := range tcs {
		if got := BinaryEntropy(tc.p); math.Abs(got-tc.want) > 1e-4 {
			t.Errorf("BinaryEntropy(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestSecureFraction(t *testing.T) {
	tcs := []struct {
		name  string
		qber  float64
		ec    float64
		want  float64
		delta float64
	}{
		{name: "noiseless", qber: 0, ec: 1.2, want: 1},
		{name: "two percent", qber: 0.02, ec: 1.2, want: 1 - 2.2*BinaryEntropy(0.02), delta: 1e-12},
		{name: "too noisy", qber: 0.2, ec: 1.2, want: 0},
		{name: "coin flip", qber: 0.5, ec: 1, want: 0},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if got := SecureFraction(tc.qber, tc.ec); math.Abs(got-tc.want) > tc.delta {
				t.Errorf("SecureFraction(%v, %v) = %v, want %v", tc.qber, tc.ec, got, tc.want)
			}
		})
	}
}

// bellSet builds samples at setting p with the given outcome products.
func bellSet(p AnglePair, products ...float64) []BellSample {
	var out []BellSample
	for _, v := range products {
		out = append(out, BellSample{Angles: p, Product: v})
	}
	return out
}

func concat(sets ...[]BellSample) []BellSample {
	var out []BellSample
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

func TestCHSH(t *testing.T) {
	ab, abp, apb, apbp := CHSHAnglePairs[0], CHSHAnglePairs[1], CHSHAnglePairs[2], CHSHAnglePairs[3]
	tcs := []struct {
		name         string
		samples      []BellSample
		wantS        float64
		wantDetected bool
	}{{
		name: "classical bound",
		samples: concat(
			bellSet(ab, 1, 1, 1, -1),
			bellSet(abp, -1, -1, -1, 1),
			bellSet(apb, 1, 1, 1, -1),
			bellSet(apbp, 1, 1, 1, -1),
		),
		wantS: 2,
	}, {
		name: "beyond Tsirelson is clamped",
		samples: concat(
			bellSet(ab, 1),
			bellSet(abp, -1),
			bellSet(apb, 1),
			bellSet(apbp, 1),
		),
		wantS: Tsirelson,
	}, {
		name:         "missing settings count as uncorrelated",
		samples:      bellSet(ab, 1, 1, 1, 1),
		wantS:        1,
		wantDetected: true,
	}, {
		name:         "too few pairs",
		samples:      concat(bellSet(ab, 1), bellSet(abp, -1), bellSet(apb, 1)),
		wantS:        0,
		wantDetected: true,
	}, {
		name: "key settings are ignored",
		samples: concat(
			bellSet(ab, 1, 1),
			bellSet(AnglePair{45, 45}, -1, -1, -1),
		),
		wantS:        1,
		wantDetected: true,
	}, {
		name:         "no pairs",
		wantS:        0,
		wantDetected: true,
	}}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := CHSH(tc.samples)
			if math.Abs(got.S-tc.wantS) > 1e-12 {
				t.Errorf("S = %v, want %v", got.S, tc.wantS)
			}
			if got.S < 0 || got.S > Tsirelson {
				t.Errorf("S = %v outside [0, %v]", got.S, Tsirelson)
			}
			if got.EavesdropperDetected != tc.wantDetected {
				t.Errorf("EavesdropperDetected = %v, want %v", got.EavesdropperDetected, tc.wantDetected)
			}
			if got.Pairs != len(tc.samples) {
				t.Errorf("Pairs = %d, want %d", got.Pairs, len(tc.samples))
			}
		})
	}
}

func TestAnalyzeDecoys(t *testing.T) {
	src := photon.PrepareSource{WeakIntensity: 0.2, VacuumIntensity: 0.1}
	events := []photon.Event{
		{Bit: true, Basis: photon.Rectilinear, Intensity: photon.Signal},
		{Bit: false, Basis: photon.Diagonal, Intensity: photon.Signal},
		{Bit: true, Basis: photon.Rectilinear, Intensity: photon.Signal},
		{Bit: true, Basis: photon.Rectilinear, Intensity: photon.WeakDecoy},
		{Bit: false, Basis: photon.Rectilinear, Intensity: photon.WeakDecoy},
		{Bit: false, Basis: photon.Diagonal, Intensity: photon.VacuumDecoy},
	}
	dets := []photon.Detection{
		{Detected: true, Bit: true, Basis: photon.Rectilinear},
		{Detected: true, Bit: true, Basis: photon.Diagonal},
		{Detected: true, Bit: false, Basis: photon.Diagonal},
		{Detected: true, Bit: true, Basis: photon.Rectilinear},
		{},
		{},
	}
	got := analyzeDecoys(src, events, dets, 0.3, 0.11)
	want := [photon.NumIntensities]IntensityStats{
		photon.Signal:      {Mu: 1, Sent: 3, Detected: 3, Gain: 1, Matched: 2, Errors: 1, QBER: 0.5},
		photon.WeakDecoy:   {Mu: 0.2, Sent: 2, Detected: 1, Gain: 0.5, Matched: 1, QBER: 0},
		photon.VacuumDecoy: {Mu: 0.1, Sent: 1},
	}
	if got.Classes != want {
		t.Errorf("Classes = %+v, want %+v", got.Classes, want)
	}
	if got.EstimatedEveInfo != 0.6 {
		t.Errorf("EstimatedEveInfo = %v, want 0.6", got.EstimatedEveInfo)
	}
	if got.ThresholdPassed {
		t.Errorf("ThresholdPassed at QBER 0.3")
	}
	if capped := analyzeDecoys(src, nil, nil, 0.7, 0.11); capped.EstimatedEveInfo != 1 {
		t.Errorf("EstimatedEveInfo = %v, want it capped at 1", capped.EstimatedEveInfo)
	}
}
