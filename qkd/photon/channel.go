package photon

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// SpeedOfLightInFiber is the group velocity of light in standard single-mode
// fiber, in km/s.
const SpeedOfLightInFiber = 2.0e5

// TransmissionProbability returns the probability that a single photon sent
// down distanceKm of fiber with the given attenuation is registered by a
// detector of the given efficiency.
func TransmissionProbability(distanceKm, lossDBPerKm, detectorEfficiency float64) float64 {
	p := math.Pow(10, -lossDBPerKm*distanceKm/10) * detectorEfficiency
	return math.Max(0, math.Min(1, p))
}

// PropagationDelay returns the time, in seconds, light needs to cross
// distanceKm of fiber.
func PropagationDelay(distanceKm float64) float64 {
	return distanceKm / SpeedOfLightInFiber
}

// A Link is one span of fiber terminated by a detector.
type Link struct {
	// Transmittance is the end-to-end survival probability of a single
	// photon, detector efficiency included.
	Transmittance float64
	// Delay is the propagation delay in seconds.
	Delay float64
	// Depolarization is the probability a surviving photon arrives in the
	// conjugate basis.
	Depolarization float64
	// JitterSigma is the standard deviation of the detector timing jitter in
	// seconds.
	JitterSigma float64
}

// NewLink builds a Link from physical parameters. jitterNs is given in
// nanoseconds.
func NewLink(distanceKm, lossDBPerKm, efficiency, depolarization, jitterNs float64) Link {
	return Link{
		Transmittance:  TransmissionProbability(distanceKm, lossDBPerKm, efficiency),
		Delay:          PropagationDelay(distanceKm),
		Depolarization: depolarization,
		JitterSigma:    jitterNs * 1e-9,
	}
}

// Transmit runs the loss and depolarization trials for one pulse with mean
// photon number mu emitted at time t. A pulse survives with probability
// min(1, mu*Transmittance).
func (l Link) Transmit(t, mu float64, r *rand.Rand) Transit {
	tr := Transit{Arrival: t + l.Delay}
	if r.Float64() >= math.Min(1, mu*l.Transmittance) {
		tr.Lost = true
		return tr
	}
	tr.Depolarized = r.Float64() < l.Depolarization
	tr.Arrival += l.jitter(r)
	return tr
}

func (l Link) jitter(r *rand.Rand) float64 {
	if l.JitterSigma == 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: l.JitterSigma, Src: r}.Rand()
}
