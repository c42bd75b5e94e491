// qkdsim runs one simulated QKD session and prints its report as JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"github.com/alan-christopher/qkdsim/internal/logging"
	"github.com/alan-christopher/qkdsim/qkd"
	"github.com/alan-christopher/qkdsim/qkd/report"
)

// config is everything a single invocation needs.
type config struct {
	kind     qkd.Kind
	params   qkd.Params
	channel  qkd.Channel
	seed     int64
	logLevel string
}

func parseFlags(args []string) (config, error) {
	fs := flag.NewFlagSet("qkdsim", flag.ContinueOnError)
	p := qkd.DefaultParams(qkd.PrepareAndMeasure)
	pm := *p.PrepareAndMeasure
	e := *qkd.DefaultParams(qkd.Entangled).Entangled
	ch := qkd.DefaultChannel()
	var cfg config

	kind := fs.String("kind", "bb84", "The protocol to run: bb84 (prepare_and_measure) or e91 (entangled).")
	fs.Int64Var(&cfg.seed, "seed", 1, "The seed every random choice of the run derives from.")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "The minimum level of log messages written to stderr.")

	fs.Float64Var(&p.DurationSeconds, "duration", p.DurationSeconds, "Seconds of quantum transmission to simulate.")
	fs.Float64Var(&p.ECEfficiency, "ec-efficiency", p.ECEfficiency, "Error correction leakage relative to the Shannon limit.")
	fs.Float64Var(&p.PAFactor, "pa-factor", p.PAFactor, "Bits removed by privacy amplification per expected error.")
	fs.Float64Var(&p.QBERThreshold, "qber-threshold", p.QBERThreshold, "The error rate at or above which no key is emitted.")
	fs.Float64Var(&p.SampleFraction, "sample", p.SampleFraction, "The proportion of sifted bits disclosed to estimate the error rate.")

	fs.Float64Var(&pm.PulseRateHz, "pulse-rate", pm.PulseRateHz, "BB84 pulses per second.")
	fs.Float64Var(&pm.BasisProb, "basis-prob", pm.BasisProb, "The probability of choosing the rectilinear basis.")
	fs.Float64Var(&pm.DecoyProb, "decoy-prob", pm.DecoyProb, "The proportion of decoy pulses.")
	fs.Float64Var(&pm.WeakIntensity, "weak", pm.WeakIntensity, "The mean photons per pulse of weak decoys.")
	fs.Float64Var(&pm.VacuumIntensity, "vacuum", pm.VacuumIntensity, "The mean photons per pulse of vacuum decoys.")

	fs.Float64Var(&e.PairRateHz, "pair-rate", e.PairRateHz, "Entangled pairs per second.")
	fs.Float64Var(&e.BellTestFraction, "bell-fraction", e.BellTestFraction, "The proportion of coincidences spent on the CHSH test.")
	fs.Float64Var(&e.CoincidenceWindowNs, "window-ns", e.CoincidenceWindowNs, "The coincidence window in nanoseconds.")
	fs.Float64Var(&e.BellThreshold, "bell-threshold", e.BellThreshold, "The CHSH value the run must exceed.")

	fs.Float64Var(&ch.LossDBPerKm, "loss", ch.LossDBPerKm, "Fiber attenuation in dB/km.")
	fs.Float64Var(&ch.DistanceKm, "distance", ch.DistanceKm, "Link length in km, or Alice's arm for e91 (default 25 for e91).")
	fs.Float64Var(&ch.BobDistanceKm, "bob-distance", ch.BobDistanceKm, "Bob's arm in km, e91 only (default 25 for e91).")
	fs.Float64Var(&ch.Depolarization, "depolarization", ch.Depolarization, "The depolarization rate of the channel or source.")
	fs.Float64Var(&ch.DetectorEfficiency, "efficiency", ch.DetectorEfficiency, "Detector efficiency.")
	fs.Float64Var(&ch.DarkCountRate, "dark-rate", ch.DarkCountRate, "Detector dark counts per second.")
	fs.Float64Var(&ch.TimingJitterNs, "jitter-ns", ch.TimingJitterNs, "Detector timing jitter (standard deviation) in nanoseconds.")
	fs.Float64Var(&ch.Misalignment, "misalignment", ch.Misalignment, "The probability an ideal measurement reports the wrong bit.")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	k, err := qkd.ParseKind(*kind)
	if err != nil {
		return config{}, err
	}
	switch k {
	case qkd.PrepareAndMeasure:
		p.PrepareAndMeasure = &pm
	case qkd.Entangled:
		p.PrepareAndMeasure = nil
		p.Entangled = &e
		def := qkd.DefaultEntangledChannel()
		if !fs.Changed("distance") {
			ch.DistanceKm = def.DistanceKm
		}
		if !fs.Changed("bob-distance") {
			ch.BobDistanceKm = def.BobDistanceKm
		}
	}
	cfg.kind, cfg.params, cfg.channel = k, p, ch
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logging.Init(os.Stderr, cfg.logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logging.Debug("starting run", "kind", cfg.kind, "seed", cfg.seed,
		"distance_km", cfg.channel.DistanceKm, "duration_s", cfg.params.DurationSeconds)
	res, err := tracedRun(context.Background(), otel.Tracer("qkdsim"), cfg)
	if err != nil {
		logging.Fatal("invalid configuration", "err", err)
	}
	if res.Success {
		logging.Info("key distilled", "kind", cfg.kind, "final_key_bits", res.FinalKeyLength,
			"qber", res.Security.QBER, "secure_key_rate", res.Security.SecureKeyRate)
		logging.Debug("final key", "bits", res.FinalKey.String())
	} else {
		logging.Warn("run aborted", "kind", cfg.kind, "reason", res.FailureReason,
			"qber", res.Security.QBER)
	}

	out, err := report.JSON(res)
	if err != nil {
		logging.Fatal("rendering report", "err", err)
	}
	os.Stdout.Write(out)
	fmt.Println()
}
