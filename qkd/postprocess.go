package qkd

import (
	"fmt"
	"math"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
)

// A Stage names a step of key refinement.
type Stage int

const (
	Raw Stage = iota
	Sifted
	Corrected
	Final
)

func (s Stage) String() string {
	switch s {
	case Raw:
		return "raw"
	case Sifted:
		return "sifted"
	case Corrected:
		return "corrected"
	case Final:
		return "final"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// A KeyStage is the sender's key material after one refinement step. Stages
// are derived from one another without modifying their input.
type KeyStage struct {
	Stage Stage
	Bits  bitmap.Dense
}

// Len returns the number of key bits in k.
func (k KeyStage) Len() int {
	return k.Bits.Size()
}

// Correct models error correction: ecEfficiency*n*qber bits are disclosed
// and the key keeps what remains of its prefix.
func Correct(sifted KeyStage, qber, ecEfficiency float64) KeyStage {
	n := sifted.Len()
	leaked := int(math.Floor(ecEfficiency * float64(n) * qber))
	return KeyStage{
		Stage: Corrected,
		Bits:  bitmap.Prefix(sifted.Bits, max(0, n-leaked)),
	}
}

// Amplify models privacy amplification: the key shrinks by the information
// an eavesdropper may hold, paFactor bits per expected error.
func Amplify(corrected KeyStage, qber, paFactor float64) KeyStage {
	n := corrected.Len()
	eve := min(n, int(math.Floor(float64(n)*qber*paFactor)))
	return KeyStage{
		Stage: Final,
		Bits:  bitmap.Prefix(corrected.Bits, max(0, n-eve)),
	}
}
