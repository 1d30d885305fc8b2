package recommend

import (
	"errors"
	"math"
	"testing"

	"lessonline/internal/graph"
	"lessonline/internal/library"
	"lessonline/internal/vector"
)

// testLibrary: Intro lifts both dims once, Drill pushes fluency, Deepen
// pushes depth, Stall does nothing and must always be flagged.
func testLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib := library.New(2)
	add := func(name string, pcond vector.Vector, p vector.Profile, maxRep, plane int) {
		_, err := lib.Add(&library.Template{
			Name:          name,
			PCond:         pcond,
			Effect:        p,
			MaxRepetition: maxRep,
			DefPlane:      plane,
		})
		if err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	intro, err := vector.FixedProfile(vector.New(0.2, 0.1), 10)
	if err != nil {
		t.Fatal(err)
	}
	add("Intro", vector.Zero(2), intro, 1, library.PlaneClass)

	drill, err := vector.NewProfile(vector.New(0.2, 0.0), vector.New(0.5, 0.0), 10, 30, 15)
	if err != nil {
		t.Fatal(err)
	}
	add("Drill", vector.New(0.3, 0.2), drill, 2, library.PlaneIndividual)

	deepen, err := vector.NewProfile(vector.New(0.0, 0.2), vector.New(0.0, 0.4), 10, 30, 20)
	if err != nil {
		t.Fatal(err)
	}
	add("Deepen", vector.New(0.4, 0.3), deepen, 2, library.PlaneTeam)

	stall, err := vector.FixedProfile(vector.Zero(2), 5)
	if err != nil {
		t.Fatal(err)
	}
	add("Stall", vector.Zero(2), stall, 5, library.PlaneClass)
	return lib
}

func newGraph(t *testing.T, budget int, start, goal vector.Vector) *graph.Graph {
	t.Helper()
	g, err := graph.New(testLibrary(t), budget, start, goal, 0)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	return g
}

func TestEvaluateScoresAndBest(t *testing.T) {
	g := newGraph(t, 120, vector.New(0.1, 0.1), vector.New(0.9, 0.9))
	cands, err := Evaluate(g, 0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(cands) != 4 {
		t.Fatalf("candidate count = %d", len(cands))
	}

	// Intro from (0.1;0.1) toward (0.9;0.9): prereq free, effect (0.2;0.1).
	distToTarget := math.Hypot(0.8, 0.8)
	wantRemoved := distToTarget - math.Hypot(0.6, 0.7)
	intro := cands[0]
	if math.Abs(intro.DistanceRemoved-wantRemoved) > 1e-9 {
		t.Fatalf("intro removed = %v, want %v", intro.DistanceRemoved, wantRemoved)
	}
	if math.Abs(intro.Score-wantRemoved/10) > 1e-9 {
		t.Fatalf("intro score = %v", intro.Score)
	}
	if !intro.OkeyToTake || !intro.IsBest {
		t.Fatalf("intro flags: %+v", intro)
	}

	// Stall removes nothing and must be flagged noProgress with no best mark.
	stall := cands[3]
	if !stall.Flags.NoProgress || stall.OkeyToTake || stall.IsBest {
		t.Fatalf("stall: %+v", stall)
	}

	bestCount := 0
	for _, c := range cands {
		if c.IsBest {
			bestCount++
		}
	}
	if bestCount != 1 {
		t.Fatalf("isBest set on %d candidates", bestCount)
	}
}

func TestEvaluatePositionValidation(t *testing.T) {
	g := newGraph(t, 120, vector.Zero(2), vector.New(0.9, 0.9))
	var ve graph.ValidationError
	if _, err := Evaluate(g, -1); !errors.As(err, &ve) {
		t.Errorf("negative position: got %v", err)
	}
	if _, err := Evaluate(g, 1); !errors.As(err, &ve) {
		t.Errorf("position past boundary count: got %v", err)
	}
	if _, err := Evaluate(g, 0); err != nil {
		t.Errorf("position 0 on empty graph: %v", err)
	}
}

func TestExhaustedFlag(t *testing.T) {
	g := newGraph(t, 120, vector.Zero(2), vector.New(0.9, 0.9))
	if err := g.Insert(0, 0, graph.InsertOptions{}); err != nil {
		t.Fatal(err)
	}
	cands, err := Evaluate(g, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !cands[0].Flags.Exhausted || cands[0].OkeyToTake {
		t.Fatalf("intro after single use: %+v", cands[0])
	}
}

func TestTooLongFlag(t *testing.T) {
	// Budget leaves room for Intro (10) but not Drill (15) or Deepen (20).
	g := newGraph(t, 12, vector.Zero(2), vector.New(0.9, 0.9))
	cands, err := Evaluate(g, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cands[0].Flags.TooLong {
		t.Fatalf("intro flagged tooLong with 12 left: %+v", cands[0])
	}
	if !cands[1].Flags.TooLong || !cands[2].Flags.TooLong {
		t.Fatalf("drill/deepen not flagged: %+v %+v", cands[1], cands[2])
	}
}

func TestBestTieGoesToLowestIndex(t *testing.T) {
	lib := library.New(1)
	p, err := vector.FixedProfile(vector.New(0.3), 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"A", "B"} {
		if _, err := lib.Add(&library.Template{
			Name: name, PCond: vector.Zero(1), Effect: p, MaxRepetition: 3,
		}); err != nil {
			t.Fatal(err)
		}
	}
	g, err := graph.New(lib, 60, vector.Zero(1), vector.New(0.9), 0)
	if err != nil {
		t.Fatal(err)
	}
	cands, err := Evaluate(g, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !cands[0].IsBest || cands[1].IsBest {
		t.Fatalf("tie not broken by index: %+v %+v", cands[0], cands[1])
	}
}

func TestViewsNullsIneligibleScores(t *testing.T) {
	g := newGraph(t, 120, vector.Zero(2), vector.New(0.9, 0.9))
	cands, err := Evaluate(g, 0)
	if err != nil {
		t.Fatal(err)
	}
	views := Views(cands)
	for i, v := range views {
		if cands[i].OkeyToTake && v.Score == nil {
			t.Errorf("%s: eligible but nil score", v.TemplateName)
		}
		if !cands[i].OkeyToTake && v.Score != nil {
			t.Errorf("%s: ineligible but score %v", v.TemplateName, *v.Score)
		}
	}
}

func TestAutoAddInsertsBestAtHardestGap(t *testing.T) {
	g := newGraph(t, 120, vector.New(0.1, 0.1), vector.New(0.9, 0.9))
	pos, err := AutoAdd(g)
	if err != nil {
		t.Fatalf("autoAdd: %v", err)
	}
	if pos != 0 || g.Len() != 1 {
		t.Fatalf("pos=%d len=%d", pos, g.Len())
	}
	inst, _ := g.Instance(0)
	if inst.Template.Name != "Intro" {
		t.Fatalf("inserted %s", inst.Template.Name)
	}
	if inst.Duration != 10 || inst.Plane != library.PlaneClass {
		t.Fatalf("defaults not applied: %+v", inst)
	}
}

func TestAutoAddNoHardGap(t *testing.T) {
	g := newGraph(t, 120, vector.New(0.5, 0.5), vector.New(0.5, 0.5))
	if _, err := AutoAdd(g); !errors.Is(err, ErrNoEligibleActivity) {
		t.Fatalf("got %v", err)
	}
	if g.Len() != 0 {
		t.Fatal("failed autoAdd mutated the graph")
	}
}

func TestAutoAddNoEligibleTemplate(t *testing.T) {
	// Budget too small for anything but Stall, which never makes progress.
	g := newGraph(t, 8, vector.Zero(2), vector.New(0.9, 0.9))
	if _, err := AutoAdd(g); !errors.Is(err, ErrNoEligibleActivity) {
		t.Fatalf("got %v", err)
	}
	if g.Len() != 0 {
		t.Fatal("failed autoAdd mutated the graph")
	}
}

func TestAutoCompleteReachesGoal(t *testing.T) {
	g := newGraph(t, 240, vector.Zero(2), vector.New(0.5, 0.4))
	res, err := AutoComplete(g, 0)
	if err != nil {
		t.Fatalf("autoComplete: %v", err)
	}
	if !res.GoalReached || !g.GoalReached() {
		t.Fatalf("goal not reached: %+v reached=%v", res, g.Reached().Values())
	}
	if res.InsertedCount == 0 {
		t.Fatal("nothing inserted")
	}
	if g.TotalTime() > g.TimeBudget() {
		t.Fatalf("budget exceeded: %d > %d", g.TotalTime(), g.TimeBudget())
	}
}

func TestAutoCompleteStopsWhenExhausted(t *testing.T) {
	// The catalog tops out below (0.9;0.9); the loop must stop cleanly and
	// report the miss as a soft signal.
	g := newGraph(t, 480, vector.Zero(2), vector.New(0.9, 0.9))
	res, err := AutoComplete(g, 0)
	if err != nil {
		t.Fatalf("autoComplete: %v", err)
	}
	if res.GoalReached {
		t.Fatalf("goal unexpectedly reached at %v", g.Reached().Values())
	}
	if res.InsertedCount == 0 {
		t.Fatal("nothing inserted before giving up")
	}
}

func TestAutoCompleteCeiling(t *testing.T) {
	g := newGraph(t, 480, vector.Zero(2), vector.New(0.9, 0.9))
	res, err := AutoComplete(g, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.InsertedCount != 1 {
		t.Fatalf("ceiling ignored: inserted %d", res.InsertedCount)
	}
}
