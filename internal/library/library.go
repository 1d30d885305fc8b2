package library

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lessonline/internal/vector"
)

// Plane indices. A plane is the organizational setting of an activity
// instance; it never participates in state or time computation.
const (
	PlaneIndividual = 0
	PlaneTeam       = 1
	PlaneClass      = 2
)

var planeNames = []string{"individual", "team", "class"}
var planeDescriptions = []string{"individually", "in teams", "as a class"}

// PlaneCount is the number of valid planes.
const PlaneCount = 3

// PlaneName returns the canonical name of a plane index.
func PlaneName(plane int) string {
	if plane < 0 || plane >= PlaneCount {
		return "unknown"
	}
	return planeNames[plane]
}

// PlaneDescription returns the human phrasing of a plane index.
func PlaneDescription(plane int) string {
	if plane < 0 || plane >= PlaneCount {
		return "unknown"
	}
	return planeDescriptions[plane]
}

// ParsePlane maps a plane name to its index.
func ParsePlane(name string) (int, error) {
	for i, n := range planeNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown plane %q", name)
}

// Template is one reusable activity definition. Created when the library is
// loaded and read-only afterwards; instances reference it, never copy it.
type Template struct {
	Idx           int
	Name          string
	Description   string
	PCond         vector.Vector
	Effect        vector.Profile
	MaxRepetition int
	DefPlane      int
	Explanation   string
	Sources       string
}

// DefT returns the template's default duration in minutes.
func (t *Template) DefT() int { return t.Effect.DefT }

// MinT returns the template's minimum duration in minutes.
func (t *Template) MinT() int { return t.Effect.MinT }

// MaxT returns the template's maximum duration in minutes.
func (t *Template) MaxT() int { return t.Effect.MaxT }

// Adjustable reports whether the duration can differ from the default.
func (t *Template) Adjustable() bool { return t.Effect.Adjustable() }

// Library is the ordered catalog of activity templates.
type Library struct {
	dims      int
	templates []*Template
}

// New returns an empty library for the given dimensionality.
func New(dims int) *Library {
	return &Library{dims: dims}
}

// Dims returns the dimensionality every vector in the library shares.
func (l *Library) Dims() int { return l.dims }

// Len returns the number of templates.
func (l *Library) Len() int { return len(l.templates) }

// Template returns the template at idx.
func (l *Library) Template(idx int) (*Template, error) {
	if idx < 0 || idx >= len(l.templates) {
		return nil, fmt.Errorf("activity index %d out of range [0,%d)", idx, len(l.templates))
	}
	return l.templates[idx], nil
}

// ByName returns the template with the given name, or nil.
func (l *Library) ByName(name string) *Template {
	for _, t := range l.templates {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Templates returns the catalog in index order.
func (l *Library) Templates() []*Template { return l.templates }

// Add appends a template, assigning the next index. Names must be unique.
func (l *Library) Add(t *Template) (int, error) {
	if t.Name == "" {
		return 0, fmt.Errorf("template name required")
	}
	if l.ByName(t.Name) != nil {
		return 0, fmt.Errorf("template name %q already exists", t.Name)
	}
	if t.PCond.Dims() != l.dims || t.Effect.MaxEffect.Dims() != l.dims {
		return 0, fmt.Errorf("template %q dims mismatch: library uses %d dimensions", t.Name, l.dims)
	}
	t.Idx = len(l.templates)
	l.templates = append(l.templates, t)
	return t.Idx, nil
}

// AddSpec validates a file-format template and appends it.
func (l *Library) AddSpec(spec *TemplateSpec) (int, error) {
	t, err := templateFromSpec(spec, l.dims)
	if err != nil {
		return 0, err
	}
	return l.Add(t)
}

// File schema (lessonline library YAML).

type File struct {
	Dims      int            `yaml:"dims"`
	Templates []TemplateSpec `yaml:"templates"`
}

type TemplateSpec struct {
	Name          string      `yaml:"name"`
	Description   string      `yaml:"description,omitempty"`
	PCond         string      `yaml:"pcond"`
	Effect        EffectSpec  `yaml:"effect"`
	Time          TimeSpec    `yaml:"time"`
	MaxRepetition int         `yaml:"max_repetition"`
	Plane         string      `yaml:"plane"`
	Explanation   string      `yaml:"explanation,omitempty"`
	Sources       string      `yaml:"sources,omitempty"`
}

type EffectSpec struct {
	Min string `yaml:"min,omitempty"`
	Max string `yaml:"max"`
}

type TimeSpec struct {
	Min     int `yaml:"min,omitempty"`
	Max     int `yaml:"max,omitempty"`
	Default int `yaml:"default"`
}

// FromYAML parses and validates a library document.
func FromYAML(data []byte) (*Library, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid library yaml: %w", err)
	}
	return fromFile(&f)
}

// FromFile reads a library YAML document from path.
func FromFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the embedded pedagogy catalog.
func Default() *Library {
	l, err := FromYAML([]byte(defaultLibrary))
	if err != nil {
		panic(fmt.Sprintf("embedded default library invalid: %v", err))
	}
	return l
}

func fromFile(f *File) (*Library, error) {
	if f.Dims <= 0 {
		return nil, fmt.Errorf("library.dims must be positive")
	}
	if len(f.Templates) == 0 {
		return nil, fmt.Errorf("library.templates is required")
	}
	l := &Library{dims: f.Dims}
	for i, spec := range f.Templates {
		t, err := templateFromSpec(&spec, f.Dims)
		if err != nil {
			return nil, fmt.Errorf("template %d (%s): %w", i, spec.Name, err)
		}
		if _, err := l.Add(t); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func templateFromSpec(spec *TemplateSpec, dims int) (*Template, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("name required")
	}
	pcond, err := vector.Parse(spec.PCond)
	if err != nil {
		return nil, fmt.Errorf("pcond: %w", err)
	}
	if pcond.Dims() != dims {
		return nil, fmt.Errorf("pcond has %d dims, library uses %d", pcond.Dims(), dims)
	}
	maxEffect, err := vector.Parse(spec.Effect.Max)
	if err != nil {
		return nil, fmt.Errorf("effect.max: %w", err)
	}
	if spec.Time.Default <= 0 {
		return nil, fmt.Errorf("time.default must be positive")
	}

	var profile vector.Profile
	if spec.Effect.Min == "" {
		// Fixed duration: only time.default is valid.
		profile, err = vector.FixedProfile(maxEffect, spec.Time.Default)
	} else {
		minEffect, perr := vector.Parse(spec.Effect.Min)
		if perr != nil {
			return nil, fmt.Errorf("effect.min: %w", perr)
		}
		profile, err = vector.NewProfile(minEffect, maxEffect, spec.Time.Min, spec.Time.Max, spec.Time.Default)
	}
	if err != nil {
		return nil, err
	}
	if profile.MaxEffect.Dims() != dims {
		return nil, fmt.Errorf("effect has %d dims, library uses %d", profile.MaxEffect.Dims(), dims)
	}

	plane, err := ParsePlane(spec.Plane)
	if err != nil {
		return nil, err
	}
	if spec.MaxRepetition <= 0 {
		return nil, fmt.Errorf("max_repetition must be positive")
	}
	return &Template{
		Name:          spec.Name,
		Description:   spec.Description,
		PCond:         pcond,
		Effect:        profile,
		MaxRepetition: spec.MaxRepetition,
		DefPlane:      plane,
		Explanation:   spec.Explanation,
		Sources:       spec.Sources,
	}, nil
}

// SpecFor converts a template back into its file representation.
func SpecFor(t *Template) TemplateSpec {
	spec := TemplateSpec{
		Name:          t.Name,
		Description:   t.Description,
		PCond:         t.PCond.String(),
		Effect:        EffectSpec{Max: t.Effect.MaxEffect.String()},
		Time:          TimeSpec{Default: t.Effect.DefT},
		MaxRepetition: t.MaxRepetition,
		Plane:         PlaneName(t.DefPlane),
		Explanation:   t.Explanation,
		Sources:       t.Sources,
	}
	if t.Adjustable() {
		spec.Effect.Min = t.Effect.MinEffect.String()
		spec.Time.Min = t.Effect.MinT
		spec.Time.Max = t.Effect.MaxT
	}
	return spec
}

// ToYAML serializes the library back to its file format.
func (l *Library) ToYAML() ([]byte, error) {
	f := File{Dims: l.dims}
	for _, t := range l.templates {
		f.Templates = append(f.Templates, SpecFor(t))
	}
	return yaml.Marshal(&f)
}
