package qkd

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// A State is one step of the protocol pipeline.
type State int

const (
	Generating State = iota
	Transmitting
	Detecting
	Sifting
	EstimatingError
	CheckingSecurity
	Aborted
	Correcting
	Amplifying
	Done
)

var stateNames = [...]string{
	Generating:       "generate",
	Transmitting:     "transmit",
	Detecting:        "detect",
	Sifting:          "sift",
	EstimatingError:  "estimate_error",
	CheckingSecurity: "security_check",
	Aborted:          "abort",
	Correcting:       "correct",
	Amplifying:       "amplify",
	Done:             "done",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders s by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reasons a run may abort with.
const (
	ReasonNoCoincidences = "no coincident detections"
	ReasonNoSiftedKey    = "no sifted key"
	ReasonInsecure       = "security threshold not met"
)

// Result is everything a run produced. A run that aborted still carries the
// metrics computed before it stopped.
type Result struct {
	Kind            Kind   `json:"-"`
	Success         bool   `json:"success"`
	FailureReason   string `json:"failure_reason,omitempty"`
	Events          int    `json:"events"`
	SiftedLength    int    `json:"sifted_length"`
	CorrectedLength int    `json:"corrected_length"`
	FinalKeyLength  int    `json:"final_key_length"`
	// Efficiency is final key bits per generated event.
	Efficiency float64         `json:"efficiency"`
	Counters   Counters        `json:"counters"`
	Security   SecurityMetrics `json:"security"`
	Trail      []State         `json:"trail"`

	// Stages holds the key material at each refinement step reached, in
	// order. FinalKey is the sender's copy of the distilled key.
	Stages   []KeyStage   `json:"-"`
	FinalKey bitmap.Dense `json:"-"`
}

// Run simulates one protocol run of the given kind. The result depends only
// on its arguments. An error is returned only for an invalid configuration;
// protocol failures are reported through Result.
func Run(kind Kind, p Params, ch Channel, seed int64) (Result, error) {
	p = p.withDefaults()
	if err := p.Validate(kind); err != nil {
		return Result{}, err
	}
	if err := ch.Validate(); err != nil {
		return Result{}, err
	}
	r := newRun(kind, p, ch, seed)
	for s := Generating; s != Done; {
		s = r.step(s)
	}
	r.finish()
	return r.res, nil
}

// run carries the working state of one simulation between pipeline steps.
type run struct {
	kind Kind
	p    Params
	ch   Channel
	seed int64
	n    int
	slot float64

	res Result

	// prepare-and-measure
	source     photon.PrepareSource
	link       photon.Link
	events     []photon.Event
	transits   []photon.Transit
	detections []photon.Detection

	// entangled
	pairs            []photon.Pair
	aliceLink        photon.Link
	bobLink          photon.Link
	aliceTransits    []photon.Transit
	bobTransits      []photon.Transit
	aliceMeasurement []photon.Measurement
	bobMeasurement   []photon.Measurement
	bell             BellAnalysis

	// sifted holds both parties' sifted bits. key is the sender's key
	// material left once error estimation has disclosed its sample.
	sifted, siftedBob bitmap.Dense
	key               KeyStage
	qber              float64
}

func newRun(kind Kind, p Params, ch Channel, seed int64) *run {
	r := &run{
		kind: kind,
		p:    p,
		ch:   ch,
		seed: seed,
		n:    p.events(kind),
		slot: 1 / p.rate(kind),
		res:  Result{Kind: kind},
	}
	switch kind {
	case PrepareAndMeasure:
		pm := p.PrepareAndMeasure
		r.source = photon.PrepareSource{
			BasisProb:       pm.BasisProb,
			DecoyProb:       pm.DecoyProb,
			WeakIntensity:   pm.WeakIntensity,
			VacuumIntensity: pm.VacuumIntensity,
		}
		r.link = r.newLink(ch.DistanceKm, ch.Depolarization)
	case Entangled:
		// Depolarization acts on the pair at the source, not on each arm.
		r.aliceLink = r.newLink(ch.DistanceKm, 0)
		r.bobLink = r.newLink(ch.BobDistanceKm, 0)
	}
	return r
}

func (r *run) newLink(distanceKm, depolarization float64) photon.Link {
	return photon.NewLink(distanceKm, r.ch.LossDBPerKm, r.ch.DetectorEfficiency, depolarization, r.ch.TimingJitterNs)
}

func (r *run) detector() photon.Detector {
	return photon.Detector{
		DarkCountProb: r.ch.DarkCountRate * r.slot,
		Misalignment:  r.ch.Misalignment,
		SlotDuration:  r.slot,
	}
}

// step performs state s and returns the state to move to.
func (r *run) step(s State) State {
	r.res.Trail = append(r.res.Trail, s)
	switch s {
	case Generating:
		r.generate()
		return Transmitting
	case Transmitting:
		r.transmit()
		return Detecting
	case Detecting:
		r.detect()
		return Sifting
	case Sifting:
		return r.sift()
	case EstimatingError:
		r.estimate()
		return CheckingSecurity
	case CheckingSecurity:
		if !r.certify() {
			r.res.FailureReason = ReasonInsecure
			return Aborted
		}
		return Correcting
	case Correcting:
		r.key = Correct(r.key, r.qber, r.p.ECEfficiency)
		r.addStage(r.key)
		return Amplifying
	case Amplifying:
		r.key = Amplify(r.key, r.qber, r.p.PAFactor)
		r.addStage(r.key)
		r.res.Success = true
		return Done
	}
	// Aborted, or a state that cannot be reached.
	return Done
}

func (r *run) addStage(k KeyStage) {
	r.res.Stages = append(r.res.Stages, k)
}

func (r *run) generate() {
	var c Counters
	switch r.kind {
	case PrepareAndMeasure:
		r.events = make([]photon.Event, r.n)
		c = forEachChunk(r.n, r.seed, "generate", func(lo, hi int, rng *rand.Rand) Counters {
			for i := lo; i < hi; i++ {
				r.events[i] = r.source.Emit(i, float64(i)*r.slot, rng)
			}
			return Counters{Generated: hi - lo}
		})
	case Entangled:
		src := photon.PairSource{Depolarization: r.ch.Depolarization}
		r.pairs = make([]photon.Pair, r.n)
		c = forEachChunk(r.n, r.seed, "generate", func(lo, hi int, rng *rand.Rand) Counters {
			for i := lo; i < hi; i++ {
				r.pairs[i] = src.Emit(i, float64(i)*r.slot, rng)
			}
			return Counters{Generated: hi - lo}
		})
	}
	r.res.Counters.Add(c)
}

func (r *run) transmit() {
	var c Counters
	switch r.kind {
	case PrepareAndMeasure:
		r.transits = make([]photon.Transit, r.n)
		c = forEachChunk(r.n, r.seed, "transmit", func(lo, hi int, rng *rand.Rand) Counters {
			var c Counters
			for i := lo; i < hi; i++ {
				ev := r.events[i]
				r.transits[i] = r.link.Transmit(ev.Time, r.source.Mu(ev.Intensity), rng)
				if !r.transits[i].Lost {
					c.Transmitted++
				}
			}
			return c
		})
	case Entangled:
		r.aliceTransits = make([]photon.Transit, r.n)
		r.bobTransits = make([]photon.Transit, r.n)
		c = forEachChunk(r.n, r.seed, "transmit", func(lo, hi int, rng *rand.Rand) Counters {
			var c Counters
			for i := lo; i < hi; i++ {
				t := r.pairs[i].Time
				r.aliceTransits[i] = r.aliceLink.Transmit(t, 1, rng)
				r.bobTransits[i] = r.bobLink.Transmit(t, 1, rng)
				if !r.aliceTransits[i].Lost {
					c.Transmitted++
				}
				if !r.bobTransits[i].Lost {
					c.Transmitted++
				}
			}
			return c
		})
	}
	r.res.Counters.Add(c)
}

func (r *run) detect() {
	det := r.detector()
	var c Counters
	switch r.kind {
	case PrepareAndMeasure:
		r.detections = make([]photon.Detection, r.n)
		basisProb := r.p.PrepareAndMeasure.BasisProb
		c = forEachChunk(r.n, r.seed, "detect", func(lo, hi int, rng *rand.Rand) Counters {
			var c Counters
			for i := lo; i < hi; i++ {
				basis := photon.ChooseBasis(basisProb, rng)
				d := det.Measure(r.events[i], r.transits[i], basis, rng)
				r.detections[i] = d
				countDetection(&c, d.Detected, d.DarkCount)
			}
			return c
		})
	case Entangled:
		r.aliceMeasurement = make([]photon.Measurement, r.n)
		r.bobMeasurement = make([]photon.Measurement, r.n)
		c = forEachChunk(r.n, r.seed, "detect", func(lo, hi int, rng *rand.Rand) Counters {
			var c Counters
			for i := lo; i < hi; i++ {
				a := photon.ChooseAngle(AliceAngles, rng)
				b := photon.ChooseAngle(BobAngles, rng)
				am, bm := det.MeasurePair(r.pairs[i], a, b, r.aliceTransits[i], r.bobTransits[i], rng)
				r.aliceMeasurement[i], r.bobMeasurement[i] = am, bm
				countDetection(&c, am.Detected, am.DarkCount)
				countDetection(&c, bm.Detected, bm.DarkCount)
			}
			return c
		})
	}
	r.res.Counters.Add(c)
}

func countDetection(c *Counters, detected, dark bool) {
	if !detected {
		return
	}
	c.Detected++
	if dark {
		c.DarkCounts++
	}
}

func (r *run) sift() State {
	var raw bitmap.Dense
	switch r.kind {
	case PrepareAndMeasure:
		raw, r.sifted, r.siftedBob = siftPrepared(r.events, r.detections)
	case Entangled:
		e := r.p.Entangled
		cs := coincidences(r.aliceMeasurement, r.bobMeasurement,
			r.aliceLink.Delay, r.bobLink.Delay, e.CoincidenceWindowNs*1e-9)
		r.res.Counters.Coincidences = len(cs)
		if len(cs) == 0 {
			r.res.FailureReason = ReasonNoCoincidences
			return Aborted
		}
		bell, key := splitBellTest(cs, e.BellTestFraction, stream(r.seed, "bell", 0))
		r.res.Counters.BellPairs = len(bell)
		r.bell = CHSH(bellSamples(bell))
		r.res.Security.Bell = &r.bell
		raw, r.sifted, r.siftedBob = siftEntangled(cs, key)
	}
	r.addStage(KeyStage{Stage: Raw, Bits: raw})
	r.addStage(KeyStage{Stage: Sifted, Bits: r.sifted})
	r.res.SiftedLength = r.sifted.Size()
	if r.sifted.Size() == 0 {
		r.res.FailureReason = ReasonNoSiftedKey
		return Aborted
	}
	return EstimatingError
}

func (r *run) estimate() {
	if r.p.SampleFraction == 0 {
		r.qber = QBER(r.sifted, r.siftedBob)
		r.key = KeyStage{Stage: Sifted, Bits: r.sifted}
	} else {
		keep, aliceSample := sample(r.sifted, r.p.SampleFraction, r.seed)
		_, bobSample := sample(r.siftedBob, r.p.SampleFraction, r.seed)
		r.qber = QBER(aliceSample, bobSample)
		r.key = KeyStage{Stage: Sifted, Bits: keep}
	}
	r.res.Security.QBER = r.qber
}

// certify fills in the security metrics and reports whether key may be
// distilled.
func (r *run) certify() bool {
	sec := &r.res.Security
	sec.SecureFraction = SecureFraction(r.qber, r.p.ECEfficiency)
	sec.RawKeyRate = float64(r.sifted.Size()) / r.p.DurationSeconds
	qberOK := r.qber < r.p.QBERThreshold
	switch r.kind {
	case PrepareAndMeasure:
		sec.Decoy = analyzeDecoys(r.source, r.events, r.detections, r.qber, r.p.QBERThreshold)
		sec.Secure = qberOK
	case Entangled:
		sec.Secure = r.bell.S > r.p.Entangled.BellThreshold && qberOK
	}
	if sec.Secure {
		sec.SecureKeyRate = sec.RawKeyRate * sec.SecureFraction
	}
	return sec.Secure
}

func (r *run) finish() {
	r.res.Trail = append(r.res.Trail, Done)
	r.res.Events = r.n
	if !r.res.Success {
		return
	}
	for _, k := range r.res.Stages {
		switch k.Stage {
		case Corrected:
			r.res.CorrectedLength = k.Len()
		case Final:
			r.res.FinalKeyLength = k.Len()
			r.res.FinalKey = k.Bits
		}
	}
	r.res.Efficiency = float64(r.res.FinalKeyLength) / float64(r.n)
}
