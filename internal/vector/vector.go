package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Precision is the tolerance used when comparing progress dimensions.
// A dimension counts as reached when it is within Precision of the target.
const Precision = 0.01

// Vector is an immutable point in the multi-dimensional progress space.
// Each dimension ranges over [0,1]; every operation returns a new Vector.
type Vector struct {
	v []float64
}

// New builds a Vector from the given dimension values.
func New(values ...float64) Vector {
	c := make([]float64, len(values))
	copy(c, values)
	return Vector{v: c}
}

// Zero returns the origin vector with the given dimensionality.
func Zero(dims int) Vector {
	return Vector{v: make([]float64, dims)}
}

// Parse reads the "(a;b)" form used by library and config files.
func Parse(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return Vector{}, fmt.Errorf("empty vector literal")
	}
	parts := strings.Split(s, ";")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Vector{}, fmt.Errorf("vector literal %q: %w", s, err)
		}
		values = append(values, f)
	}
	return Vector{v: values}, nil
}

// Dims returns the dimensionality.
func (a Vector) Dims() int { return len(a.v) }

// At returns the value of dimension i.
func (a Vector) At(i int) float64 { return a.v[i] }

// Values returns a copy of the underlying dimension values.
func (a Vector) Values() []float64 {
	c := make([]float64, len(a.v))
	copy(c, a.v)
	return c
}

// Equal reports exact dimension-wise equality.
func (a Vector) Equal(b Vector) bool {
	if len(a.v) != len(b.v) {
		return false
	}
	for i := range a.v {
		if a.v[i] != b.v[i] {
			return false
		}
	}
	return true
}

// NeedToReach returns the component-wise maximum of a and the prerequisite b:
// the minimal state that covers both.
func (a Vector) NeedToReach(b Vector) Vector {
	res := make([]float64, len(a.v))
	for i := range a.v {
		res[i] = math.Max(a.v[i], b.v[i])
	}
	return Vector{v: res}
}

// Plus adds an effect component-wise, clamping every dimension to [0,1].
func (a Vector) Plus(effect Vector) Vector {
	res := make([]float64, len(a.v))
	for i := range a.v {
		res[i] = clamp01(a.v[i] + effect.v[i])
	}
	return Vector{v: res}
}

// IsPast reports whether a satisfies b in every dimension, within Precision.
func (a Vector) IsPast(b Vector) bool {
	for i := range a.v {
		if a.v[i]+Precision < b.v[i] {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance over all dimensions.
func (a Vector) Distance(b Vector) float64 {
	sum := 0.0
	for i := range a.v {
		d := a.v[i] - b.v[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ForwardDistance returns the Euclidean distance restricted to dimensions
// where a is still behind b. Dimensions already satisfied contribute zero,
// so progress that overshoots one dimension is never double-counted.
func (a Vector) ForwardDistance(b Vector) float64 {
	sum := 0.0
	for i := range a.v {
		if a.v[i] < b.v[i] {
			d := a.v[i] - b.v[i]
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

// String renders the "(a;b)" literal form, rounded to three decimals.
func (a Vector) String() string {
	parts := make([]string, len(a.v))
	for i, f := range a.v {
		parts[i] = strconv.FormatFloat(math.Round(f*1000)/1000, 'g', -1, 64)
	}
	return "(" + strings.Join(parts, ";") + ")"
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
