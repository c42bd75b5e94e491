// bench.go runs a QKD simulation for each entry in the cartesian product of a
// collection of different tuning parameters, e.g. link distance and
// depolarization, and outputs a CSV of relevant statistics for each different
// combination, e.g. sifted bits, error rate and final key length.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/alan-christopher/qkdsim/internal/logging"
	"github.com/alan-christopher/qkdsim/internal/store"
	"github.com/alan-christopher/qkdsim/qkd"
	"github.com/alan-christopher/qkdsim/qkd/report"
)

var (
	kind     = flag.StringSlice("kind", []string{"bb84"}, "The protocols to run: bb84 and/or e91.")
	seed     = flag.IntSlice("seed", []int{1}, "The seeds to run each parameterization with.")
	duration = flag.Float64Slice("duration", []float64{1}, "Seconds of quantum transmission to simulate.")
	distance = flag.Float64Slice("distance", []float64{10, 50, 100},
		"Link lengths in km. For e91 the source sits in the middle, so each arm is half of this.")
	loss   = flag.Float64Slice("loss", []float64{0.2}, "Fiber attenuation in dB/km.")
	depol  = flag.Float64Slice("depolarization", []float64{0.001}, "The depolarization rates of the channel or source.")
	misal  = flag.Float64Slice("misalignment", []float64{0.01}, "The probability an ideal measurement reports the wrong bit.")
	sample = flag.Float64Slice("sample", []float64{0}, "The proportion of sifted bits disclosed to estimate the error rate.")

	dbPath   = flag.String("db", "", "If set, a SQLite database every run is recorded in.")
	logLevel = flag.String("log-level", "warn", "The minimum level of log messages written to stderr.")
)

// An Experiment packages together a single parameterization.
type Experiment struct {
	Kind           qkd.Kind
	Seed           int64
	Duration       float64
	Distance       float64
	Loss           float64
	Depolarization float64
	Misalignment   float64
	Sample         float64
}

// A sweep holds the values each input is swept over.
type sweep struct {
	Kinds           []string
	Seeds           []int
	Durations       []float64
	Distances       []float64
	Losses          []float64
	Depolarizations []float64
	Misalignments   []float64
	Samples         []float64
}

func main() {
	flag.Parse()
	if err := logging.Init(os.Stderr, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Logger = logging.WithPrefix("bench")
	s := sweep{
		Kinds:           *kind,
		Seeds:           *seed,
		Durations:       *duration,
		Distances:       *distance,
		Losses:          *loss,
		Depolarizations: *depol,
		Misalignments:   *misal,
		Samples:         *sample,
	}
	if err := run(context.Background(), s, *dbPath, os.Stdout); err != nil {
		logging.Fatal("sweep failed", "err", err)
	}
}

// run benches every experiment of s, writing CSV lines to w and, if dbPath
// is set, recording each run there.
func run(ctx context.Context, s sweep, dbPath string, w io.Writer) error {
	exps, err := s.experiments()
	if err != nil {
		return err
	}
	var db *store.Store
	if dbPath != "" {
		if db, err = store.Open(dbPath); err != nil {
			return fmt.Errorf("opening run database %s: %w", dbPath, err)
		}
		defer db.Close()
	}

	fmt.Fprintln(w, report.CSVHeader())
	for _, exp := range exps {
		res, ch, err := bench(exp)
		if err != nil {
			logging.Error("benching", "experiment", fmt.Sprintf("%+v", exp), "err", err)
			continue
		}
		line, err := report.CSVLine(report.NewRow(res, ch, exp.Seed))
		if err != nil {
			return fmt.Errorf("BUG: could not fill in line template: %w", err)
		}
		fmt.Fprint(w, line)
		if db != nil {
			if err := record(ctx, db, exp, res, ch); err != nil {
				logging.Error("recording run", "err", err)
			}
		}
	}
	return nil
}

// experiments returns the cartesian product of s. Earlier inputs vary
// slowest.
func (s sweep) experiments() ([]Experiment, error) {
	kinds := make([]qkd.Kind, 0, len(s.Kinds))
	for _, name := range s.Kinds {
		k, err := qkd.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	exps := []Experiment{{}}
	exps = expand(exps, len(kinds), func(e *Experiment, i int) { e.Kind = kinds[i] })
	exps = expand(exps, len(s.Seeds), func(e *Experiment, i int) { e.Seed = int64(s.Seeds[i]) })
	exps = expand(exps, len(s.Durations), func(e *Experiment, i int) { e.Duration = s.Durations[i] })
	exps = expand(exps, len(s.Distances), func(e *Experiment, i int) { e.Distance = s.Distances[i] })
	exps = expand(exps, len(s.Losses), func(e *Experiment, i int) { e.Loss = s.Losses[i] })
	exps = expand(exps, len(s.Depolarizations), func(e *Experiment, i int) { e.Depolarization = s.Depolarizations[i] })
	exps = expand(exps, len(s.Misalignments), func(e *Experiment, i int) { e.Misalignment = s.Misalignments[i] })
	exps = expand(exps, len(s.Samples), func(e *Experiment, i int) { e.Sample = s.Samples[i] })
	return exps, nil
}

// expand returns n copies of every experiment in exps, the i-th copy
// modified by set.
func expand(exps []Experiment, n int, set func(*Experiment, int)) []Experiment {
	out := make([]Experiment, 0, len(exps)*n)
	for _, e := range exps {
		for i := 0; i < n; i++ {
			set(&e, i)
			out = append(out, e)
		}
	}
	return out
}

// bench turns exp into engine parameters and runs it.
func bench(exp Experiment) (qkd.Result, qkd.Channel, error) {
	p := qkd.DefaultParams(exp.Kind)
	p.DurationSeconds = exp.Duration
	p.SampleFraction = exp.Sample
	ch := qkd.DefaultChannel()
	ch.DistanceKm = exp.Distance
	if exp.Kind == qkd.Entangled {
		ch.DistanceKm = exp.Distance / 2
		ch.BobDistanceKm = exp.Distance / 2
	}
	ch.LossDBPerKm = exp.Loss
	ch.Depolarization = exp.Depolarization
	ch.Misalignment = exp.Misalignment
	res, err := qkd.Run(exp.Kind, p, ch, exp.Seed)
	if err != nil {
		return qkd.Result{}, ch, err
	}
	logging.Debug("run finished", "kind", exp.Kind, "distance_km", exp.Distance,
		"seed", exp.Seed, "success", res.Success, "final_key_bits", res.FinalKeyLength)
	return res, ch, nil
}

func record(ctx context.Context, db *store.Store, exp Experiment, res qkd.Result, ch qkd.Channel) error {
	js, err := report.JSON(res)
	if err != nil {
		return err
	}
	r := store.Record{
		Kind:           exp.Kind.String(),
		Seed:           exp.Seed,
		DistanceKm:     ch.DistanceKm,
		BobDistanceKm:  ch.BobDistanceKm,
		Depolarization: ch.Depolarization,
		Success:        res.Success,
		FailureReason:  res.FailureReason,
		QBER:           res.Security.QBER,
		SiftedLength:   res.SiftedLength,
		FinalKeyLength: res.FinalKeyLength,
		SecureKeyRate:  res.Security.SecureKeyRate,
		Report:         js,
	}
	if b := res.Security.Bell; b != nil {
		r.BellS = b.S
	}
	id, err := db.Save(ctx, r)
	if err != nil {
		return err
	}
	logging.Debug("recorded run", "id", id)
	return nil
}
