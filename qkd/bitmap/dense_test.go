package bitmap

import (
	"bytes"
	"reflect"
	"testing"

	"golang.org/x/exp/rand"
)

func TestDenseGet(t *testing.T) {
	tcs := []struct {
		name  string
		data  Dense
		edata []bool
	}{
		{"implicit zeros", NewDense(nil, 3), []bool{false, false, false}},
		{"aligned", mustDense(t, "10101010"), []bool{true, false, true, false, true, false, true, false}},
		{"multibyte",
			mustDense(t, "00000000 101"),
			[]bool{false, false, false, false, false, false, false, false, true, false, true}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			var d []bool
			for i := 0; i < tc.data.Size(); i++ {
				d = append(d, tc.data.Get(i))
			}
			if !reflect.DeepEqual(d, tc.edata) {
				t.Errorf("t.Get() == %v, want %v", d, tc.edata)
			}
		})
	}
}

func TestDenseGetOutOfRange(t *testing.T) {
	d := mustDense(t, "111")
	if d.Get(3) || d.Get(-1) || d.Get(1000) {
		t.Errorf("out of range Get returned true")
	}
}

func TestDenseAppendBit(t *testing.T) {
	tcs := []struct {
		name string
		a, b Dense
		eout Dense
	}{
		{
			name: "no alloc",
			a:    mustDense(t, "101"),
			b:    mustDense(t, "111"),
			eout: mustDense(t, "101111"),
		}, {
			name: "aligned",
			a:    mustDense(t, "10101010"),
			b:    mustDense(t, "01010101"),
			eout: mustDense(t, "10101010 01010101"),
		}, {
			name: "unaligned",
			a:    mustDense(t, "10101010 01"),
			b:    mustDense(t, "01010101"),
			eout: mustDense(t, "10101010 01 01010101"),
		}, {
			name: "onto empty",
			a:    Empty(),
			b:    mustDense(t, "11"),
			eout: mustDense(t, "11"),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < tc.b.Size(); i++ {
				tc.a.AppendBit(tc.b.Get(i))
			}
			if tc.a.len != tc.eout.len {
				t.Errorf("got bitmap of len %d, want %d", tc.a.len, tc.eout.len)
			}
			if !bytes.Equal(tc.a.bits, tc.eout.bits) {
				t.Errorf("got %v, want %v", tc.a, tc.eout)
			}
		})
	}
}

func TestDenseSwap(t *testing.T) {
	tcs := []struct {
		name string
		d    Dense
		i, j int
		eout Dense
	}{
		{"zeros", mustDense(t, "00"), 0, 1, mustDense(t, "00")},
		{"ones", mustDense(t, "11"), 0, 1, mustDense(t, "11")},
		{"one zero", mustDense(t, "10"), 0, 1, mustDense(t, "01")},
		{"zero one", mustDense(t, "01"), 0, 1, mustDense(t, "10")},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tc.d.swap(tc.i, tc.j)
			if !bytes.Equal(tc.d.bits, tc.eout.bits) {
				t.Errorf("got %v, want %v", tc.d, tc.eout)
			}
		})
	}
}

func TestShufflePreservesWeight(t *testing.T) {
	d := mustDense(t, "11100000 00001111 101")
	before := CountOnes(d)
	d.Shuffle(rand.New(rand.NewSource(7)))
	if got := CountOnes(d); got != before {
		t.Errorf("CountOnes after Shuffle == %d, want %d", got, before)
	}
	if d.Size() != 19 {
		t.Errorf("Size after Shuffle == %d, want 19", d.Size())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	d := mustDense(t, "1010")
	c := d.Clone()
	c.Flip(1)
	if d.Get(1) {
		t.Errorf("flipping a clone modified the original")
	}
}

func TestNewDenseClearsTail(t *testing.T) {
	d := NewDense([]byte{0xFF, 0xFF}, 10)
	if got := d.bits[1]; got != 0b11 {
		t.Errorf("tail byte == %08b, want 00000011", got)
	}
}
