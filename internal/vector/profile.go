package vector

import "fmt"

// InvalidDurationError reports a duration outside a profile's allowed range.
type InvalidDurationError struct {
	Duration int
	MinT     int
	MaxT     int
}

func (e InvalidDurationError) Error() string {
	return fmt.Sprintf("duration %d outside allowed range [%d,%d]", e.Duration, e.MinT, e.MaxT)
}

// Profile is the time-interpolated learning gain of an activity: the effect
// grows linearly from MinEffect at MinT minutes to MaxEffect at MaxT minutes.
// Fixed-duration activities collapse to MinT == MaxT == DefT with
// MinEffect == MaxEffect. Immutable once built.
type Profile struct {
	MinEffect Vector
	MaxEffect Vector
	MinT      int
	MaxT      int
	DefT      int

	defEffect Vector
}

// NewProfile validates the bounds and precomputes the default effect.
func NewProfile(minEffect, maxEffect Vector, minT, maxT, defT int) (Profile, error) {
	if minT <= 0 || maxT < minT {
		return Profile{}, fmt.Errorf("profile time bounds [%d,%d] invalid", minT, maxT)
	}
	if defT < minT || defT > maxT {
		return Profile{}, InvalidDurationError{Duration: defT, MinT: minT, MaxT: maxT}
	}
	if minEffect.Dims() != maxEffect.Dims() {
		return Profile{}, fmt.Errorf("profile effect dims mismatch: %d vs %d", minEffect.Dims(), maxEffect.Dims())
	}
	p := Profile{MinEffect: minEffect, MaxEffect: maxEffect, MinT: minT, MaxT: maxT, DefT: defT}
	p.defEffect = p.interpolate(defT)
	return p, nil
}

// FixedProfile builds a profile whose only valid duration is defT.
func FixedProfile(effect Vector, defT int) (Profile, error) {
	return NewProfile(effect, effect, defT, defT, defT)
}

// Adjustable reports whether more than one duration is valid.
func (p Profile) Adjustable() bool { return p.MinT != p.MaxT }

// EffectAt returns the interpolated effect for the chosen duration.
func (p Profile) EffectAt(duration int) (Vector, error) {
	if duration < p.MinT || duration > p.MaxT {
		return Vector{}, InvalidDurationError{Duration: duration, MinT: p.MinT, MaxT: p.MaxT}
	}
	return p.interpolate(duration), nil
}

// Default returns the effect at the default duration.
func (p Profile) Default() Vector { return p.defEffect }

func (p Profile) interpolate(duration int) Vector {
	if p.MaxT == p.MinT {
		return p.MaxEffect
	}
	lambda := float64(duration-p.MinT) / float64(p.MaxT-p.MinT)
	res := make([]float64, p.MinEffect.Dims())
	for i := range res {
		lo := p.MinEffect.At(i)
		hi := p.MaxEffect.At(i)
		res[i] = lo + lambda*(hi-lo)
	}
	return Vector{v: res}
}
