// Package qkd simulates quantum key distribution between two parties,
// from photon generation through privacy amplification.
//
// Two schemes are supported: prepare-and-measure BB84 with decoy intensities,
// and an entanglement-based scheme certified by a CHSH Bell test. Run is the
// single entry point; its output is a pure function of the parameters and the
// seed.
package qkd

import (
	"errors"
	"fmt"
	"math"
)

// A Kind selects the protocol variant.
type Kind int

const (
	PrepareAndMeasure Kind = iota
	Entangled
)

func (k Kind) String() string {
	switch k {
	case PrepareAndMeasure:
		return "prepare_and_measure"
	case Entangled:
		return "entangled"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String. It also accepts the protocol
// names "bb84" and "e91".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "prepare_and_measure", "bb84":
		return PrepareAndMeasure, nil
	case "entangled", "e91":
		return Entangled, nil
	}
	return 0, fmt.Errorf("%w: unknown protocol kind %q", ErrInvalidConfig, s)
}

var (
	DefaultQBERThreshold = 0.11
	DefaultBellThreshold = 2.0
	DefaultECEfficiency  = 1.2
	DefaultPAFactor      = 2.0
	DefaultWindowNs      = 1.0

	// MaxEvents bounds the number of slots one run may simulate.
	MaxEvents = 1 << 26
)

// ErrInvalidConfig is wrapped by every error Run returns. Protocol failures
// are not errors; they are reported through Result.
var ErrInvalidConfig = errors.New("qkd: invalid configuration")

// Params packages together the protocol parameters of a run. Exactly one of
// PrepareAndMeasure and Entangled must be set, matching the Kind passed to
// Run.
type Params struct {
	// DurationSeconds is the length of the quantum transmission phase.
	DurationSeconds float64

	// ECEfficiency is the ratio of bits disclosed during error correction to
	// the Shannon limit. Defaults to DefaultECEfficiency.
	ECEfficiency float64

	// PAFactor scales the information an eavesdropper is assumed to hold per
	// observed error. Defaults to DefaultPAFactor.
	PAFactor float64

	// QBERThreshold is the error rate at or above which no key is emitted.
	// Defaults to DefaultQBERThreshold.
	QBERThreshold float64

	// SampleFraction specifies the proportion of sifted bits disclosed for
	// error rate estimation. Disclosed bits are discarded from the key. Zero
	// estimates on the whole sifted key without discarding anything.
	SampleFraction float64

	PrepareAndMeasure *PrepareAndMeasureParams
	Entangled         *EntangledParams
}

// PrepareAndMeasureParams holds the BB84-specific parameters.
type PrepareAndMeasureParams struct {
	PulseRateHz float64
	// BasisProb is the probability either party picks the rectilinear basis.
	BasisProb float64
	// DecoyProb is the probability a pulse is a decoy, split evenly between
	// the weak and vacuum classes.
	DecoyProb       float64
	WeakIntensity   float64
	VacuumIntensity float64
}

// EntangledParams holds the parameters specific to the entanglement-based
// scheme.
type EntangledParams struct {
	PairRateHz float64
	// BellTestFraction is the share of coincidences reserved for the CHSH
	// test.
	BellTestFraction float64
	// CoincidenceWindowNs is the largest arrival time difference, after
	// calibrating out the fixed arm delays, for two detections to count as one
	// pair. Defaults to DefaultWindowNs.
	CoincidenceWindowNs float64
	// BellThreshold is the CHSH value S must exceed. Defaults to
	// DefaultBellThreshold.
	BellThreshold float64
}

// Channel describes the fiber and detectors. For the entangled scheme the
// source sits between the parties: DistanceKm is Alice's arm and
// BobDistanceKm is Bob's. BobDistanceKm is ignored by prepare-and-measure.
type Channel struct {
	LossDBPerKm        float64
	DistanceKm         float64
	BobDistanceKm      float64
	Depolarization     float64
	DetectorEfficiency float64
	// DarkCountRate is in Hz.
	DarkCountRate float64
	// TimingJitterNs is the standard deviation of detector timing noise.
	TimingJitterNs float64
	// Misalignment is the probability an ideal measurement reports the wrong
	// bit.
	Misalignment float64
}

// DefaultParams returns the parameters used when nothing else is specified.
func DefaultParams(k Kind) Params {
	p := Params{
		DurationSeconds: 1,
		ECEfficiency:    DefaultECEfficiency,
		PAFactor:        DefaultPAFactor,
		QBERThreshold:   DefaultQBERThreshold,
	}
	switch k {
	case PrepareAndMeasure:
		p.PrepareAndMeasure = &PrepareAndMeasureParams{
			PulseRateHz:     1e6,
			BasisProb:       0.5,
			DecoyProb:       0.5,
			WeakIntensity:   0.2,
			VacuumIntensity: 0.1,
		}
	case Entangled:
		p.Entangled = &EntangledParams{
			PairRateHz:          1e6,
			BellTestFraction:    0.1,
			CoincidenceWindowNs: DefaultWindowNs,
			BellThreshold:       DefaultBellThreshold,
		}
	}
	return p
}

// DefaultChannel returns a 50 km link over standard telecom fiber.
func DefaultChannel() Channel {
	return Channel{
		LossDBPerKm:        0.2,
		DistanceKm:         50,
		Depolarization:     0.001,
		DetectorEfficiency: 0.8,
		DarkCountRate:      1e-6,
		TimingJitterNs:     0.1,
		Misalignment:       0.01,
	}
}

// DefaultEntangledChannel returns DefaultChannel with the source in the
// middle of two 25 km arms.
func DefaultEntangledChannel() Channel {
	ch := DefaultChannel()
	ch.DistanceKm = 25
	ch.BobDistanceKm = 25
	return ch
}

func (p Params) withDefaults() Params {
	if p.ECEfficiency == 0 {
		p.ECEfficiency = DefaultECEfficiency
	}
	if p.PAFactor == 0 {
		p.PAFactor = DefaultPAFactor
	}
	if p.QBERThreshold == 0 {
		p.QBERThreshold = DefaultQBERThreshold
	}
	if p.Entangled != nil {
		e := *p.Entangled
		if e.CoincidenceWindowNs == 0 {
			e.CoincidenceWindowNs = DefaultWindowNs
		}
		if e.BellThreshold == 0 {
			e.BellThreshold = DefaultBellThreshold
		}
		p.Entangled = &e
	}
	if p.PrepareAndMeasure != nil {
		pm := *p.PrepareAndMeasure
		p.PrepareAndMeasure = &pm
	}
	return p
}

// rate returns the slot rate of the scheme selected by k.
func (p Params) rate(k Kind) float64 {
	if k == Entangled {
		return p.Entangled.PairRateHz
	}
	return p.PrepareAndMeasure.PulseRateHz
}

// events returns the number of slots simulated for scheme k.
func (p Params) events(k Kind) int {
	return int(math.Round(p.rate(k) * p.DurationSeconds))
}

// Validate reports whether p is a usable configuration for scheme k.
func (p Params) Validate(k Kind) error {
	switch k {
	case PrepareAndMeasure:
		if p.PrepareAndMeasure == nil || p.Entangled != nil {
			return fmt.Errorf("%w: %v needs exactly the PrepareAndMeasure parameters", ErrInvalidConfig, k)
		}
	case Entangled:
		if p.Entangled == nil || p.PrepareAndMeasure != nil {
			return fmt.Errorf("%w: %v needs exactly the Entangled parameters", ErrInvalidConfig, k)
		}
	default:
		return fmt.Errorf("%w: unknown protocol kind %v", ErrInvalidConfig, k)
	}
	checks := []error{
		positive("duration_seconds", p.DurationSeconds),
		nonNegative("ec_efficiency", p.ECEfficiency),
		nonNegative("pa_factor", p.PAFactor),
		probability("qber_threshold", p.QBERThreshold),
		probability("sample_fraction", p.SampleFraction),
	}
	if p.SampleFraction == 1 {
		checks = append(checks, fmt.Errorf("%w: sample_fraction must be below 1", ErrInvalidConfig))
	}
	if pm := p.PrepareAndMeasure; pm != nil {
		checks = append(checks,
			positive("pulse_rate_hz", pm.PulseRateHz),
			probability("basis_prob", pm.BasisProb),
			probability("decoy_prob", pm.DecoyProb),
			nonNegative("weak_intensity", pm.WeakIntensity),
			nonNegative("vacuum_intensity", pm.VacuumIntensity),
		)
	}
	if e := p.Entangled; e != nil {
		checks = append(checks,
			positive("pair_rate_hz", e.PairRateHz),
			probability("bell_test_fraction", e.BellTestFraction),
			positive("coincidence_window_ns", e.CoincidenceWindowNs),
			nonNegative("bell_threshold", e.BellThreshold),
		)
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	n := math.Round(p.rate(k) * p.DurationSeconds)
	if n < 1 {
		return fmt.Errorf("%w: rate and duration yield no slots", ErrInvalidConfig)
	}
	if n > float64(MaxEvents) {
		return fmt.Errorf("%w: %.0f slots exceeds the limit of %d", ErrInvalidConfig, n, MaxEvents)
	}
	return nil
}

// Validate reports whether c describes a physically meaningful channel.
func (c Channel) Validate() error {
	checks := []error{
		nonNegative("loss_db_per_km", c.LossDBPerKm),
		nonNegative("distance_km", c.DistanceKm),
		nonNegative("bob_distance_km", c.BobDistanceKm),
		probability("depolarization", c.Depolarization),
		probability("detector_efficiency", c.DetectorEfficiency),
		nonNegative("dark_count_rate", c.DarkCountRate),
		nonNegative("timing_jitter_ns", c.TimingJitterNs),
		probability("misalignment", c.Misalignment),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// The comparisons below are written so that NaN fails them.

func nonNegative(name string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 1) {
		return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidConfig, name, v)
	}
	return nil
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 1) {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, name, v)
	}
	return nil
}

func probability(name string, v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%w: %s must lie in [0, 1], got %v", ErrInvalidConfig, name, v)
	}
	return nil
}
