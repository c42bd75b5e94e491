package qkd

import (
	"testing"

	"github.com/alan-christopher/qkdsim/qkd/photon"
)

func TestSiftPrepared(t *testing.T) {
	rect, diag := photon.Rectilinear, photon.Diagonal
	events := []photon.Event{
		{Bit: true, Basis: rect, Intensity: photon.Signal},
		{Bit: false, Basis: diag, Intensity: photon.Signal},
		{Bit: true, Basis: diag, Intensity: photon.Signal},
		{Bit: true, Basis: rect, Intensity: photon.WeakDecoy},
		{Bit: false, Basis: rect, Intensity: photon.Signal},
		{Bit: true, Basis: rect, Intensity: photon.Signal},
	}
	dets := []photon.Detection{
		{Detected: true, Bit: true, Basis: rect},
		{Detected: true, Bit: true, Basis: diag},
		{Detected: true, Bit: true, Basis: rect},
		{Detected: true, Bit: true, Basis: rect},
		{Detected: false, Basis: rect},
		{Detected: true, Bit: true, Basis: rect, DarkCount: true},
	}
	raw, alice, bob := siftPrepared(events, dets)
	if want := mustBits(t, "1011 01"); !sameBits(raw, want) {
		t.Errorf("raw = %v, want %v", raw, want)
	}
	if want := mustBits(t, "101"); !sameBits(alice, want) {
		t.Errorf("alice = %v, want %v", alice, want)
	}
	if want := mustBits(t, "111"); !sameBits(bob, want) {
		t.Errorf("bob = %v, want %v", bob, want)
	}
}

func TestCoincidences(t *testing.T) {
	const (
		delayA = 1e-4
		delayB = 3e-4
		window = 1e-9
	)
	m := func(detected bool, t float64) photon.Measurement {
		return photon.Measurement{Detected: detected, Time: t}
	}
	alice := []photon.Measurement{
		m(true, 0+delayA),
		m(true, 1e-6+delayA),
		m(false, 2e-6+delayA),
		m(true, 3e-6+delayA),
		m(true, 4e-6+delayA+0.4e-9),
	}
	bob := []photon.Measurement{
		m(true, 0+delayB),
		m(true, 1e-6+delayB+2e-9),
		m(true, 2e-6+delayB),
		m(false, 3e-6+delayB),
		m(true, 4e-6+delayB-0.4e-9),
	}
	got := coincidences(alice, bob, delayA, delayB, window)
	var slots []int
	for _, c := range got {
		slots = append(slots, c.slot)
	}
	want := []int{0, 4}
	if len(slots) != len(want) {
		t.Fatalf("coincident slots = %v, want %v", slots, want)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("coincident slots = %v, want %v", slots, want)
			break
		}
	}
}

func TestSplitBellTest(t *testing.T) {
	cs := make([]coincidence, 103)
	for i := range cs {
		cs[i].slot = i
	}
	tcs := []struct {
		name     string
		fraction float64
		wantBell int
	}{
		{name: "none", fraction: 0, wantBell: 0},
		{name: "tenth", fraction: 0.1, wantBell: 10},
		{name: "half", fraction: 0.5, wantBell: 51},
		{name: "all", fraction: 1, wantBell: 103},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			bell, key := splitBellTest(cs, tc.fraction, stream(3, "bell", 0))
			if len(bell) != tc.wantBell {
				t.Errorf("reserved %d pairs, want %d", len(bell), tc.wantBell)
			}
			if len(bell)+len(key) != len(cs) {
				t.Errorf("split %d pairs into %d+%d", len(cs), len(bell), len(key))
			}
			for i := 1; i < len(key); i++ {
				if key[i].slot <= key[i-1].slot {
					t.Fatalf("key candidates out of slot order at %d", i)
				}
			}
		})
	}
}

func TestSiftEntangled(t *testing.T) {
	c := func(a, b photon.Angle, aBit, bBit bool) coincidence {
		return coincidence{
			alice: photon.Measurement{Detected: true, Angle: a, Bit: aBit},
			bob:   photon.Measurement{Detected: true, Angle: b, Bit: bBit},
		}
	}
	key := []coincidence{
		c(22.5, 22.5, true, true),
		c(0, 22.5, true, false),
		c(45, 45, false, true),
		c(45, 67.5, true, true),
		c(45, 45, true, true),
	}
	all := append([]coincidence{c(0, 67.5, false, false)}, key...)
	raw, alice, bob := siftEntangled(all, key)
	if raw.Size() != len(all) {
		t.Errorf("raw holds %d bits, want %d", raw.Size(), len(all))
	}
	if want := mustBits(t, "101"); !sameBits(alice, want) {
		t.Errorf("alice = %v, want %v", alice, want)
	}
	if want := mustBits(t, "111"); !sameBits(bob, want) {
		t.Errorf("bob = %v, want %v", bob, want)
	}
}

func TestBellSamples(t *testing.T) {
	cs := []coincidence{
		{alice: photon.Measurement{Angle: 0, Bit: true}, bob: photon.Measurement{Angle: 22.5, Bit: true}},
		{alice: photon.Measurement{Angle: 45, Bit: false}, bob: photon.Measurement{Angle: 67.5, Bit: true}},
	}
	got := bellSamples(cs)
	want := []BellSample{
		{Angles: AnglePair{0, 22.5}, Product: 1},
		{Angles: AnglePair{45, 67.5}, Product: -1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
