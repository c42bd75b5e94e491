// Package report renders simulation results for consumption outside the
// process: as protobuf Structs, as JSON, and as CSV lines for sweeps.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alan-christopher/qkdsim/qkd"
)

// Struct converts res into a protobuf Struct. Key material is not included.
func Struct(res qkd.Result) (*structpb.Struct, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("building struct: %w", err)
	}
	s.Fields["kind"] = structpb.NewStringValue(res.Kind.String())
	return s, nil
}

// JSON renders res as indented JSON with sorted keys. Equal results render
// to equal bytes.
func JSON(res qkd.Result) ([]byte, error) {
	s, err := Struct(res)
	if err != nil {
		return nil, err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling struct: %w", err)
	}
	return b, nil
}

// A Row is one line of a sweep: the parameters that varied and what came of
// them.
type Row struct {
	// Fields corresponding to experiment parameters
	Kind           string
	Seed           int64
	DistanceKm     float64
	BobDistanceKm  float64
	LossDBPerKm    float64
	Depolarization float64
	Misalignment   float64

	// Fields corresponding to experiment results
	Events         int
	SiftedLength   int
	FinalKeyLength int
	QBER           float64
	BellS          float64
	SecureKeyRate  float64
	Success        bool
	FailureReason  string
}

// NewRow collects the sweep columns for one run.
func NewRow(res qkd.Result, ch qkd.Channel, seed int64) Row {
	r := Row{
		Kind:           res.Kind.String(),
		Seed:           seed,
		DistanceKm:     ch.DistanceKm,
		BobDistanceKm:  ch.BobDistanceKm,
		LossDBPerKm:    ch.LossDBPerKm,
		Depolarization: ch.Depolarization,
		Misalignment:   ch.Misalignment,
		Events:         res.Events,
		SiftedLength:   res.SiftedLength,
		FinalKeyLength: res.FinalKeyLength,
		QBER:           res.Security.QBER,
		SecureKeyRate:  res.Security.SecureKeyRate,
		Success:        res.Success,
		FailureReason:  res.FailureReason,
	}
	if b := res.Security.Bell; b != nil {
		r.BellS = b.S
	}
	return r
}

// columns lists the Row fields written to CSV, in order.
var columns = []string{"Kind", "Seed", "DistanceKm", "BobDistanceKm",
	"LossDBPerKm", "Depolarization", "Misalignment", "Events", "SiftedLength",
	"FinalKeyLength", "QBER", "BellS", "SecureKeyRate", "Success",
	"FailureReason"}

var lineTmpl = template.Must(template.New("line").Parse(lineTemplate()))

// CSVHeader returns the header line matching CSVLine, without a newline.
func CSVHeader() string {
	return strings.Join(columns, ", ")
}

// CSVLine formats r as one newline-terminated CSV line. Failure reasons
// contain no commas, so no quoting is needed.
func CSVLine(r Row) (string, error) {
	var buf bytes.Buffer
	if err := lineTmpl.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("filling in line template: %w", err)
	}
	return buf.String(), nil
}

func lineTemplate() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}
