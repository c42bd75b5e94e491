package photon

import (
	"golang.org/x/exp/rand"
)

// A Detector turns transmitted photons into detection records.
type Detector struct {
	// DarkCountProb is the probability of a dark count in one slot, i.e. the
	// dark-count rate times the slot duration.
	DarkCountProb float64
	// Misalignment is the probability that an otherwise ideal measurement
	// reports the wrong bit.
	Misalignment float64
	// SlotDuration is the length of one time slot in seconds.
	SlotDuration float64
}

// Measure records what the receiver sees for ev after transit tr when
// measuring in basis.
func (d Detector) Measure(ev Event, tr Transit, basis Basis, r *rand.Rand) Detection {
	det := Detection{Basis: basis}
	if tr.Lost {
		det.Detected, det.Time = d.darkCount(tr.Arrival, r)
		if det.Detected {
			det.DarkCount = true
			det.Bit = randomBit(r)
		}
		return det
	}
	det.Detected = true
	det.Time = tr.Arrival
	effective := ev.Basis
	if tr.Depolarized {
		effective = effective.Flip()
	}
	if effective != basis {
		det.Bit = randomBit(r)
		return det
	}
	det.Bit = ev.Bit != (r.Float64() < d.Misalignment)
	return det
}

// MeasurePair records both sides of an entangled slot. Alice measures at a,
// Bob at b. Their raw outcomes agree with probability (1 + V*E(a,b))/2, where
// V = 2F-1 is the pair's visibility; each side then suffers its own
// misalignment flip. Lost photons can still dark-count.
func (d Detector) MeasurePair(p Pair, a, b Angle, ta, tb Transit, r *rand.Rand) (alice, bob Measurement) {
	alice = Measurement{Angle: a}
	bob = Measurement{Angle: b}

	aBit := randomBit(r)
	visibility := 2*p.Fidelity - 1
	same := r.Float64() < (1+visibility*Correlation(a, b))/2
	bBit := aBit == same

	d.fill(&alice, aBit, ta, r)
	d.fill(&bob, bBit, tb, r)
	return alice, bob
}

func (d Detector) fill(m *Measurement, bit bool, tr Transit, r *rand.Rand) {
	if tr.Lost {
		m.Detected, m.Time = d.darkCount(tr.Arrival, r)
		if m.Detected {
			m.DarkCount = true
			m.Bit = randomBit(r)
		}
		return
	}
	m.Detected = true
	m.Time = tr.Arrival
	m.Bit = bit != (r.Float64() < d.Misalignment)
}

// darkCount decides whether a dark count fires in the slot starting at t and,
// if so, when.
func (d Detector) darkCount(t float64, r *rand.Rand) (bool, float64) {
	if d.DarkCountProb <= 0 || r.Float64() >= d.DarkCountProb {
		return false, 0
	}
	return true, t + r.Float64()*d.SlotDuration
}

func randomBit(r *rand.Rand) bool {
	return r.Uint64()&1 == 1
}
