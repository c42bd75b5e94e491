package qkd

import (
	"math"
	"testing"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

func mustBits(t *testing.T, s string) bitmap.Dense {
	d, err := bitmap.FromString(s)
	if err != nil {
		t.Fatalf("bugged test setup: %v", err)
	}
	return d
}

func sameBits(a, b bitmap.Dense) bool {
	return a.Size() == b.Size() && bitmap.CountOnes(bitmap.XOr(a, b)) == 0
}

func TestQBER(t *testing.T) {
	tcs := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "1011 0010", b: "1011 0010", want: 0},
		{name: "one in four", a: "1011", b: "1001", want: 0.25},
		{name: "complement", a: "1100 1", b: "0011 0", want: 1},
		{name: "empty", a: "", b: "", want: 1},
		{name: "across bytes", a: "0000 0000 0000 0000", b: "1000 0000 0000 0001", want: 0.125},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := QBER(mustBits(t, tc.a), mustBits(t, tc.b))
			if got != tc.want {
				t.Errorf("QBER(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestQBERSelf(t *testing.T) {
	d := bitmap.NewDense([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 29)
	if got := QBER(d, d); got != 0 {
		t.Errorf("QBER(d, d) = %v, want 0", got)
	}
}

func TestExpectedCorrelation(t *testing.T) {
	tcs := []struct {
		a, b photon.Angle
		want float64
	}{
		{a: 22.5, b: 22.5, want: 1},
		{a: 0, b: 90, want: -1},
		{a: 0, b: 22.5, want: math.Sqrt2 / 2},
		{a: 0, b: 67.5, want: -math.Sqrt2 / 2},
	}
	for _, tc := range tcs {
		if got := ExpectedCorrelation(tc.a, tc.b); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("ExpectedCorrelation(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSample(t *testing.T) {
	bits := mustBits(t, "1011 0010 1110 0001 0101 1100 1")
	tcs := []struct {
		name       string
		proportion float64
		wantSample int
	}{
		{name: "nothing", proportion: 0, wantSample: 0},
		{name: "a fifth", proportion: 0.2, wantSample: 5},
		{name: "half", proportion: 0.5, wantSample: 12},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			before := bits.Clone()
			unsampled, sampled := sample(bits, tc.proportion, 7)
			if sampled.Size() != tc.wantSample {
				t.Errorf("sampled %d bits, want %d", sampled.Size(), tc.wantSample)
			}
			if got := unsampled.Size() + sampled.Size(); got != bits.Size() {
				t.Errorf("split into %d bits, want %d", got, bits.Size())
			}
			ones := bitmap.CountOnes(unsampled) + bitmap.CountOnes(sampled)
			if ones != bitmap.CountOnes(bits) {
				t.Errorf("split holds %d ones, want %d", ones, bitmap.CountOnes(bits))
			}
			if !sameBits(bits, before) {
				t.Errorf("sample modified its input")
			}
		})
	}
}

func TestSampleSharedPositions(t *testing.T) {
	alice := mustBits(t, "1011 0010 1110 0001 0101 1100 1011 0111")
	bob := alice.Clone()
	bob.Flip(3)
	bob.Flip(17)
	_, aSample := sample(alice, 0.5, 11)
	_, bSample := sample(bob, 0.5, 11)
	_, aAgain := sample(alice, 0.5, 11)
	if !sameBits(aSample, aAgain) {
		t.Errorf("sampling with one seed selected different positions")
	}
	diff := bitmap.CountOnes(bitmap.XOr(aSample, bSample))
	if diff > 2 {
		t.Errorf("samples differ in %d positions, but only 2 errors exist", diff)
	}
}
