package library

import (
	"os"
	"path/filepath"
	"testing"

	"lessonline/internal/vector"
)

func TestDefaultLibraryLoads(t *testing.T) {
	lib := Default()
	if lib.Dims() != 2 {
		t.Fatalf("dims = %d", lib.Dims())
	}
	if lib.Len() != 10 {
		t.Fatalf("template count = %d", lib.Len())
	}
	for i, tmpl := range lib.Templates() {
		if tmpl.Idx != i {
			t.Errorf("%s has idx %d at position %d", tmpl.Name, tmpl.Idx, i)
		}
	}
	pm := lib.ByName("PracticeMemory")
	if pm == nil {
		t.Fatal("PracticeMemory missing")
	}
	if !pm.PCond.Equal(vector.New(0.2, 0.2)) {
		t.Fatalf("PracticeMemory pcond = %v", pm.PCond.Values())
	}
	if pm.MinT() != 10 || pm.MaxT() != 30 || pm.DefT() != 15 {
		t.Fatalf("PracticeMemory times = %d/%d/%d", pm.MinT(), pm.DefT(), pm.MaxT())
	}
	if !pm.Adjustable() || pm.MaxRepetition != 2 || pm.DefPlane != PlaneIndividual {
		t.Fatalf("PracticeMemory = %+v", pm)
	}
	intro := lib.ByName("Introduction")
	if intro == nil || intro.Adjustable() {
		t.Fatal("Introduction should be fixed-duration")
	}
}

func TestFromYAML(t *testing.T) {
	doc := `dims: 2
templates:
  - name: Warmup
    pcond: "(0.0;0.0)"
    effect:
      max: "(0.1;0.1)"
    time:
      default: 5
    max_repetition: 1
    plane: class
  - name: Exercise
    pcond: "(0.1;0.1)"
    effect:
      min: "(0.1;0.0)"
      max: "(0.3;0.0)"
    time:
      min: 5
      max: 20
      default: 10
    max_repetition: 3
    plane: individual
`
	lib, err := FromYAML([]byte(doc))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if lib.Len() != 2 {
		t.Fatalf("len = %d", lib.Len())
	}
	ex := lib.ByName("Exercise")
	eff, err := ex.Effect.EffectAt(20)
	if err != nil || !eff.Equal(vector.New(0.3, 0.0)) {
		t.Fatalf("EffectAt(20) = %v, %v", eff.Values(), err)
	}
}

func TestFromYAMLRejectsBadDocs(t *testing.T) {
	cases := map[string]string{
		"no dims":       "templates:\n  - name: X\n    pcond: \"(0)\"\n    effect: {max: \"(0.1)\"}\n    time: {default: 5}\n    max_repetition: 1\n    plane: class\n",
		"no templates":  "dims: 2\n",
		"bad pcond":     "dims: 1\ntemplates:\n  - name: X\n    pcond: \"nope\"\n    effect: {max: \"(0.1)\"}\n    time: {default: 5}\n    max_repetition: 1\n    plane: class\n",
		"dims mismatch": "dims: 2\ntemplates:\n  - name: X\n    pcond: \"(0.1)\"\n    effect: {max: \"(0.1;0.1)\"}\n    time: {default: 5}\n    max_repetition: 1\n    plane: class\n",
		"bad plane":     "dims: 1\ntemplates:\n  - name: X\n    pcond: \"(0)\"\n    effect: {max: \"(0.1)\"}\n    time: {default: 5}\n    max_repetition: 1\n    plane: orbit\n",
		"zero rep":      "dims: 1\ntemplates:\n  - name: X\n    pcond: \"(0)\"\n    effect: {max: \"(0.1)\"}\n    time: {default: 5}\n    max_repetition: 0\n    plane: class\n",
		"dup name":      "dims: 1\ntemplates:\n  - name: X\n    pcond: \"(0)\"\n    effect: {max: \"(0.1)\"}\n    time: {default: 5}\n    max_repetition: 1\n    plane: class\n  - name: X\n    pcond: \"(0)\"\n    effect: {max: \"(0.1)\"}\n    time: {default: 5}\n    max_repetition: 1\n    plane: class\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestToYAMLRoundTrip(t *testing.T) {
	lib := Default()
	data, err := lib.ToYAML()
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	again, err := FromYAML(data)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Len() != lib.Len() || again.Dims() != lib.Dims() {
		t.Fatalf("round trip changed shape: %d/%d", again.Len(), again.Dims())
	}
	for i := 0; i < lib.Len(); i++ {
		a, _ := lib.Template(i)
		b, _ := again.Template(i)
		if a.Name != b.Name || a.DefT() != b.DefT() || a.DefPlane != b.DefPlane {
			t.Fatalf("template %d differs: %s vs %s", i, a.Name, b.Name)
		}
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.yaml")
	if err := os.WriteFile(path, []byte(defaultLibrary), 0o644); err != nil {
		t.Fatal(err)
	}
	lib, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if lib.Len() != 10 {
		t.Fatalf("len = %d", lib.Len())
	}
	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
}

func TestParsePlane(t *testing.T) {
	for name, want := range map[string]int{"individual": PlaneIndividual, "Team": PlaneTeam, " class ": PlaneClass} {
		got, err := ParsePlane(name)
		if err != nil || got != want {
			t.Errorf("ParsePlane(%q) = %d, %v", name, got, err)
		}
	}
	if _, err := ParsePlane("orbit"); err == nil {
		t.Error("unknown plane accepted")
	}
}

func TestAddValidation(t *testing.T) {
	lib := New(2)
	p, err := vector.FixedProfile(vector.New(0.1, 0.1), 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lib.Add(&Template{Effect: p, PCond: vector.Zero(2), MaxRepetition: 1}); err == nil {
		t.Error("empty name accepted")
	}
	if _, err := lib.Add(&Template{Name: "A", Effect: p, PCond: vector.Zero(2), MaxRepetition: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := lib.Add(&Template{Name: "A", Effect: p, PCond: vector.Zero(2), MaxRepetition: 1}); err == nil {
		t.Error("duplicate name accepted")
	}
	if _, err := lib.Add(&Template{Name: "B", Effect: p, PCond: vector.Zero(3), MaxRepetition: 1}); err == nil {
		t.Error("dims mismatch accepted")
	}
	if _, err := lib.Template(5); err == nil {
		t.Error("out of range index accepted")
	}
}
