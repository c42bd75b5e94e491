// Package photon models the physical layer of a QKD link: sources of
// polarization-encoded photons or entangled pairs, lossy fiber, and
// single-photon detectors. Polarization is represented by a simplified
// bit/basis (or angle) description rather than complex amplitudes.
package photon

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
)

// A Basis is one of the two conjugate polarization bases used by
// prepare-and-measure schemes.
type Basis uint8

const (
	Rectilinear Basis = iota
	Diagonal
)

func (b Basis) String() string {
	switch b {
	case Rectilinear:
		return "+"
	case Diagonal:
		return "x"
	}
	return fmt.Sprintf("Basis(%d)", uint8(b))
}

// Flip returns the conjugate basis.
func (b Basis) Flip() Basis {
	if b == Rectilinear {
		return Diagonal
	}
	return Rectilinear
}

// ChooseBasis returns Rectilinear with probability pRect and Diagonal
// otherwise.
func ChooseBasis(pRect float64, r *rand.Rand) Basis {
	if r.Float64() < pRect {
		return Rectilinear
	}
	return Diagonal
}

// An Intensity classifies the mean photon number a pulse was prepared with.
// Only Signal pulses contribute key material; decoys exist to bound an
// eavesdropper's photon-number-splitting advantage.
type Intensity uint8

const (
	Signal Intensity = iota
	WeakDecoy
	VacuumDecoy

	NumIntensities = 3
)

func (i Intensity) String() string {
	switch i {
	case Signal:
		return "signal"
	case WeakDecoy:
		return "weak"
	case VacuumDecoy:
		return "vacuum"
	}
	return fmt.Sprintf("Intensity(%d)", uint8(i))
}

// An Angle is a polarizer orientation in degrees.
type Angle float64

// Radians converts a to radians.
func (a Angle) Radians() float64 {
	return float64(a) * math.Pi / 180
}

// Correlation returns the quantum-predicted correlation E(a,b) between
// polarization measurements at angles a and b on a maximally entangled
// |Phi+> pair: cos(2(a-b)). It is +1 for parallel analyzers and -1 for
// orthogonal ones.
func Correlation(a, b Angle) float64 {
	return math.Cos(2 * (a - b).Radians())
}

// ChooseAngle picks one of angles uniformly.
func ChooseAngle(angles []Angle, r *rand.Rand) Angle {
	return angles[r.Intn(len(angles))]
}

// An Event is one photon prepared by a prepare-and-measure sender. Events are
// values and are never modified after emission.
type Event struct {
	Slot      int
	Bit       bool
	Basis     Basis
	Intensity Intensity
	// Time is the emission time in seconds since the start of the run.
	Time float64
}

// A Pair is one entangled photon pair. No basis is fixed at creation; each
// side picks its own analyzer angle.
type Pair struct {
	Slot     int
	Fidelity float64
	Time     float64
}

// A Transit records what the fiber did to one photon.
type Transit struct {
	Lost bool
	// Depolarized marks a photon whose polarization was scrambled into the
	// conjugate basis.
	Depolarized bool
	// Arrival is the time the photon reached (or, if lost, would have
	// reached) the detector.
	Arrival float64
}

// A Detection is the receiver's record for one prepare-and-measure slot.
// Bit is meaningful only when Detected is set.
type Detection struct {
	Detected  bool
	Bit       bool
	Basis     Basis
	DarkCount bool
	Time      float64
}

// A Measurement is one side's record for one entangled slot.
type Measurement struct {
	Detected  bool
	Bit       bool
	Angle     Angle
	DarkCount bool
	Time      float64
}
