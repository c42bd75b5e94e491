package photon

import (
	"math"

	"golang.org/x/exp/rand"
)

// A PrepareSource emits BB84 photons with decoy intensity modulation.
type PrepareSource struct {
	// BasisProb is the probability of preparing in the rectilinear basis.
	BasisProb float64
	// DecoyProb is the probability a pulse is a decoy. Half of the decoys are
	// vacuum, half weak.
	DecoyProb float64
	// Mean photon numbers of the decoy classes. Signal pulses have mean 1.
	WeakIntensity   float64
	VacuumIntensity float64
}

// Emit prepares the photon for one slot.
func (s PrepareSource) Emit(slot int, t float64, r *rand.Rand) Event {
	ev := Event{
		Slot:  slot,
		Bit:   r.Uint64()&1 == 1,
		Basis: ChooseBasis(s.BasisProb, r),
		Time:  t,
	}
	switch u := r.Float64(); {
	case u < s.DecoyProb/2:
		ev.Intensity = VacuumDecoy
	case u < s.DecoyProb:
		ev.Intensity = WeakDecoy
	default:
		ev.Intensity = Signal
	}
	return ev
}

// Mu returns the mean photon number of an intensity class.
func (s PrepareSource) Mu(i Intensity) float64 {
	switch i {
	case WeakDecoy:
		return s.WeakIntensity
	case VacuumDecoy:
		return s.VacuumIntensity
	}
	return 1
}

// A PairSource emits |Phi+> pairs degraded by depolarization.
type PairSource struct {
	Depolarization float64
}

// MinFidelity is the floor below which a pair is treated as fully mixed.
const MinFidelity = 0.5

// Emit creates the pair for one slot. Its fidelity is 1 minus a uniform
// degradation in [0, Depolarization), floored at MinFidelity.
func (s PairSource) Emit(slot int, t float64, r *rand.Rand) Pair {
	return Pair{
		Slot:     slot,
		Fidelity: math.Max(MinFidelity, 1-r.Float64()*s.Depolarization),
		Time:     t,
	}
}
