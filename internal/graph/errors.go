package graph

import "fmt"

// ValidationError reports a rejected mutation argument. Each offending
// argument gets its own Field so callers can act on it; no validation error
// ever leaves the graph partially mutated.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func errPosition(field string, pos, max int) ValidationError {
	return ValidationError{Field: field, Msg: fmt.Sprintf("position %d out of range [0,%d]", pos, max)}
}

func errTemplate(idx, n int) ValidationError {
	return ValidationError{Field: "templateIdx", Msg: fmt.Sprintf("template index %d out of range [0,%d)", idx, n)}
}

func errPlane(plane, count int) ValidationError {
	return ValidationError{Field: "plane", Msg: fmt.Sprintf("plane %d out of range [0,%d)", plane, count)}
}
