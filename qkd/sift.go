package qkd

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// An AnglePair is the pair of analyzer settings used on one entangled slot.
type AnglePair struct {
	Alice photon.Angle `json:"alice"`
	Bob   photon.Angle `json:"bob"`
}

var (
	// AliceAngles and BobAngles are the analyzer settings each side picks
	// from uniformly.
	AliceAngles = []photon.Angle{0, 22.5, 45}
	BobAngles   = []photon.Angle{22.5, 45, 67.5}

	// KeyAnglePairs are the settings whose outcomes are perfectly correlated
	// on an ideal pair and so may contribute key bits.
	KeyAnglePairs = []AnglePair{{22.5, 22.5}, {45, 45}}

	// CHSHAnglePairs are the settings (a,b), (a,b'), (a',b), (a',b') whose
	// correlations enter the CHSH combination, in that order.
	CHSHAnglePairs = [4]AnglePair{{0, 22.5}, {0, 67.5}, {45, 22.5}, {45, 67.5}}
)

func keyCompatible(p AnglePair) bool {
	for _, k := range KeyAnglePairs {
		if k == p {
			return true
		}
	}
	return false
}

// siftPrepared sifts a prepare-and-measure run. It returns the sender's raw
// bits for every slot, and both parties' bits at the slots where the
// receiver detected a signal pulse in the basis it was prepared in.
func siftPrepared(events []photon.Event, dets []photon.Detection) (raw, alice, bob bitmap.Dense) {
	var bobRaw bitmap.Dense
	detected := make([]bool, len(events))
	matched := make([]bool, len(events))
	for i, ev := range events {
		d := dets[i]
		raw.AppendBit(ev.Bit)
		bobRaw.AppendBit(d.Bit)
		detected[i] = d.Detected
		matched[i] = d.Basis == ev.Basis && ev.Intensity == photon.Signal
	}
	mask := bitmap.And(bitmap.FromBools(detected), bitmap.FromBools(matched))
	return raw, bitmap.Select(raw, mask), bitmap.Select(bobRaw, mask)
}

// A coincidence is a slot in which both sides registered a detection close
// enough in time to be attributed to the same pair.
type coincidence struct {
	slot       int
	alice, bob photon.Measurement
}

func (c coincidence) angles() AnglePair {
	return AnglePair{Alice: c.alice.Angle, Bob: c.bob.Angle}
}

// coincidences pairs up detections whose arrival times, less the known arm
// delays, differ by less than window seconds.
func coincidences(alice, bob []photon.Measurement, delayA, delayB, window float64) []coincidence {
	var cs []coincidence
	for i := range alice {
		a, b := alice[i], bob[i]
		if !a.Detected || !b.Detected {
			continue
		}
		if math.Abs((a.Time-delayA)-(b.Time-delayB)) >= window {
			continue
		}
		cs = append(cs, coincidence{slot: i, alice: a, bob: b})
	}
	return cs
}

// splitBellTest reserves floor(len(cs)*fraction) randomly chosen coincidences
// for the Bell test. The rest, in slot order, are candidates for the key.
func splitBellTest(cs []coincidence, fraction float64, r *rand.Rand) (bell, key []coincidence) {
	nBell := int(math.Floor(float64(len(cs)) * fraction))
	reserved := make([]bool, len(cs))
	for _, i := range r.Perm(len(cs))[:nBell] {
		reserved[i] = true
	}
	for i, c := range cs {
		if reserved[i] {
			bell = append(bell, c)
		} else {
			key = append(key, c)
		}
	}
	return bell, key
}

// siftEntangled returns Alice's bits over all coincidences, and both sides'
// bits over the key candidates measured at key-compatible settings. Bob's
// bits are inverted where his outcomes are expected to anticorrelate with
// Alice's.
func siftEntangled(all, key []coincidence) (raw, alice, bob bitmap.Dense) {
	for _, c := range all {
		raw.AppendBit(c.alice.Bit)
	}
	for _, c := range key {
		angles := c.angles()
		if !keyCompatible(angles) {
			continue
		}
		alice.AppendBit(c.alice.Bit)
		bob.AppendBit(c.bob.Bit != (ExpectedCorrelation(angles.Alice, angles.Bob) < 0))
	}
	return raw, alice, bob
}

// A BellSample is one Bell-test coincidence reduced to its settings and the
// product of the two sides' outcomes, each read as +1 or -1.
type BellSample struct {
	Angles  AnglePair
	Product float64
}

func bellSamples(cs []coincidence) []BellSample {
	samples := make([]BellSample, 0, len(cs))
	for _, c := range cs {
		product := 1.0
		if c.alice.Bit != c.bob.Bit {
			product = -1
		}
		samples = append(samples, BellSample{Angles: c.angles(), Product: product})
	}
	return samples
}
