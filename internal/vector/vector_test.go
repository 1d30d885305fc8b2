package vector

import (
	"errors"
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParseRoundTrip(t *testing.T) {
	v, err := Parse("(0.3;0.2)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Dims() != 2 || !almost(v.At(0), 0.3) || !almost(v.At(1), 0.2) {
		t.Fatalf("parsed %v", v.Values())
	}
	if got := v.String(); got != "(0.3;0.2)" {
		t.Fatalf("string = %q", got)
	}
}

func TestParseBareAndSpaced(t *testing.T) {
	v, err := Parse(" 0.1 ; 0.25 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !v.Equal(New(0.1, 0.25)) {
		t.Fatalf("got %v", v.Values())
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "()", "(a;b)", "(0.1;;0.2)"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestNeedToReach(t *testing.T) {
	got := New(0.1, 0.3).NeedToReach(New(0.3, 0.2))
	if !got.Equal(New(0.3, 0.3)) {
		t.Fatalf("got %v", got.Values())
	}
}

func TestPlusClamps(t *testing.T) {
	got := New(0.9, 0.0).Plus(New(0.3, -0.2))
	if !almost(got.At(0), 1.0) {
		t.Errorf("dim 0 = %v, want clamp to 1", got.At(0))
	}
	if !almost(got.At(1), 0.0) {
		t.Errorf("dim 1 = %v, want clamp to 0", got.At(1))
	}
}

func TestIsPastTolerance(t *testing.T) {
	target := New(0.5, 0.5)
	if !New(0.5, 0.5).IsPast(target) {
		t.Error("equal state should be past")
	}
	if !New(0.495, 0.5).IsPast(target) {
		t.Error("shortfall within precision should be past")
	}
	if New(0.48, 0.5).IsPast(target) {
		t.Error("shortfall beyond precision should not be past")
	}
}

func TestDistance(t *testing.T) {
	d := New(0, 0).Distance(New(0.3, 0.4))
	if !almost(d, 0.5) {
		t.Fatalf("distance = %v", d)
	}
}

func TestForwardDistanceIgnoresSatisfiedDims(t *testing.T) {
	// Dim 0 is already past the target, only dim 1 contributes.
	d := New(0.9, 0.1).ForwardDistance(New(0.5, 0.4))
	if !almost(d, 0.3) {
		t.Fatalf("forward distance = %v", d)
	}
	if fd := New(0.6, 0.6).ForwardDistance(New(0.5, 0.4)); fd != 0 {
		t.Fatalf("fully satisfied should be 0, got %v", fd)
	}
}

func TestImmutability(t *testing.T) {
	base := New(0.2, 0.2)
	_ = base.Plus(New(0.5, 0.5))
	_ = base.NeedToReach(New(0.9, 0.9))
	if !base.Equal(New(0.2, 0.2)) {
		t.Fatalf("base mutated: %v", base.Values())
	}
	vals := base.Values()
	vals[0] = 99
	if !almost(base.At(0), 0.2) {
		t.Fatal("Values() must copy")
	}
}

func TestProfileInterpolation(t *testing.T) {
	p, err := NewProfile(New(0.2, 0.0), New(0.5, 0.0), 10, 30, 15)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if !p.Adjustable() {
		t.Fatal("profile should be adjustable")
	}
	lo, err := p.EffectAt(10)
	if err != nil || !lo.Equal(New(0.2, 0.0)) {
		t.Fatalf("EffectAt(10) = %v, %v", lo.Values(), err)
	}
	hi, err := p.EffectAt(30)
	if err != nil || !hi.Equal(New(0.5, 0.0)) {
		t.Fatalf("EffectAt(30) = %v, %v", hi.Values(), err)
	}
	mid, err := p.EffectAt(20)
	if err != nil || !almost(mid.At(0), 0.35) {
		t.Fatalf("EffectAt(20) = %v, %v", mid.Values(), err)
	}
	if !p.Default().Equal(mustEffect(t, p, 15)) {
		t.Fatal("Default() disagrees with EffectAt(DefT)")
	}
}

func TestProfileRejectsOutOfRange(t *testing.T) {
	p, err := NewProfile(New(0.2), New(0.5), 10, 30, 15)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	for _, d := range []int{9, 31, 0, -5} {
		_, err := p.EffectAt(d)
		var ide InvalidDurationError
		if err == nil {
			t.Fatalf("EffectAt(%d): expected error", d)
		}
		if !errors.As(err, &ide) {
			t.Fatalf("EffectAt(%d): wrong error type %T", d, err)
		}
		if ide.Duration != d || ide.MinT != 10 || ide.MaxT != 30 {
			t.Fatalf("EffectAt(%d): bad error fields %+v", d, ide)
		}
	}
}

func TestFixedProfile(t *testing.T) {
	p, err := FixedProfile(New(0.15, 0.05), 10)
	if err != nil {
		t.Fatalf("FixedProfile: %v", err)
	}
	if p.Adjustable() {
		t.Fatal("fixed profile must not be adjustable")
	}
	eff, err := p.EffectAt(10)
	if err != nil || !eff.Equal(New(0.15, 0.05)) {
		t.Fatalf("EffectAt(10) = %v, %v", eff.Values(), err)
	}
	if _, err := p.EffectAt(11); err == nil {
		t.Fatal("EffectAt(11): expected error")
	}
}

func TestProfileValidation(t *testing.T) {
	if _, err := NewProfile(New(0.1), New(0.2), 0, 10, 5); err == nil {
		t.Error("minT 0 should be rejected")
	}
	if _, err := NewProfile(New(0.1), New(0.2), 20, 10, 15); err == nil {
		t.Error("maxT < minT should be rejected")
	}
	if _, err := NewProfile(New(0.1), New(0.2), 10, 30, 40); err == nil {
		t.Error("defT outside range should be rejected")
	}
	if _, err := NewProfile(New(0.1), New(0.2, 0.3), 10, 30, 15); err == nil {
		t.Error("dims mismatch should be rejected")
	}
}

func mustEffect(t *testing.T, p Profile, d int) Vector {
	t.Helper()
	v, err := p.EffectAt(d)
	if err != nil {
		t.Fatalf("EffectAt(%d): %v", d, err)
	}
	return v
}
