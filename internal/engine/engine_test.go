package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lessonline/internal/config"
	"lessonline/internal/db"
	"lessonline/internal/engine"
	"lessonline/internal/graph"
	"lessonline/internal/library"
	"lessonline/internal/migrate"
	"lessonline/internal/recommend"
	"lessonline/internal/repo"
)

type testEnv struct {
	Engine  *engine.Engine
	Ctx     context.Context
	Session string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	s, err := eng.CreateSession(ctx, engine.SessionCreateOptions{
		Name:    "algebra-intro",
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Session: s.ID}
}

func TestCreateSessionDefaults(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.GetSession(env.Ctx, env.Session)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Dims != 2 || s.TimeBudget != 120 {
		t.Fatalf("defaults not applied: %+v", s)
	}
	snap, err := env.Engine.State(env.Ctx, env.Session)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(snap.Instances) != 0 || snap.GoalReached {
		t.Fatalf("fresh snapshot: %+v", snap)
	}
	if snap.SessionID != env.Session {
		t.Fatalf("session id missing from snapshot")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]engine.SessionCreateOptions{
		"no name":    {ActorID: "tester"},
		"bad start":  {Name: "x", Start: "nope"},
		"wrong dims": {Name: "x", Goal: "(0.9)"},
		"bad budget": {Name: "x", TimeBudget: -5},
	}
	for name, opts := range cases {
		if _, err := env.Engine.CreateSession(env.Ctx, opts); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestInsertPersistsAndReplays(t *testing.T) {
	env := newTestEnv(t)
	snap, err := env.Engine.Insert(env.Ctx, engine.InsertOptions{
		SessionID:   env.Session,
		TemplateIdx: 0,
		Position:    0,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(snap.Instances) != 1 || snap.Instances[0].TemplateName != "Introduction" {
		t.Fatalf("snapshot: %+v", snap.Instances)
	}

	// A fresh read replays from the stored steps.
	again, err := env.Engine.State(env.Ctx, env.Session)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(again.Instances) != 1 || again.TotalTime != snap.TotalTime {
		t.Fatalf("replayed snapshot differs: %+v", again)
	}
	for d := range snap.Reached {
		if again.Reached[d] != snap.Reached[d] {
			t.Fatalf("reached differs after replay")
		}
	}
}

func TestInsertRejectionsLeaveStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	var ve graph.ValidationError
	_, err := env.Engine.Insert(env.Ctx, engine.InsertOptions{
		SessionID: env.Session, TemplateIdx: 99, Position: 0, ActorID: "tester",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("bad template: got %v", err)
	}
	_, err = env.Engine.Insert(env.Ctx, engine.InsertOptions{
		SessionID: env.Session, TemplateIdx: 0, Position: 3, ActorID: "tester",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("bad position: got %v", err)
	}
	snap, err := env.Engine.State(env.Ctx, env.Session)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Instances) != 0 {
		t.Fatal("rejected insert persisted something")
	}
}

func TestRemoveAndExchange(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, 0, 0) // Introduction
	mustInsert(t, env, 2, 1) // TellTheClass

	snap, err := env.Engine.Exchange(env.Ctx, env.Session, 0, 1, "tester")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if snap.Instances[0].TemplateName != "TellTheClass" {
		t.Fatalf("exchange order: %+v", snap.Instances)
	}

	snap, err = env.Engine.Remove(env.Ctx, env.Session, 0, "tester")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(snap.Instances) != 1 || snap.Instances[0].TemplateName != "Introduction" {
		t.Fatalf("after remove: %+v", snap.Instances)
	}
}

func TestChangePlane(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, 0, 0)
	snap, err := env.Engine.ChangePlane(env.Ctx, env.Session, 0, 1, "tester")
	if err != nil {
		t.Fatalf("change plane: %v", err)
	}
	if snap.Instances[0].PlaneName != "team" {
		t.Fatalf("plane: %+v", snap.Instances[0])
	}
	again, _ := env.Engine.State(env.Ctx, env.Session)
	if again.Instances[0].PlaneName != "team" {
		t.Fatal("plane change not persisted")
	}
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, 0, 0)
	snap, err := env.Engine.Reset(env.Ctx, env.Session, "tester")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(snap.Instances) != 0 || snap.TotalTime != 0 {
		t.Fatalf("after reset: %+v", snap)
	}
}

func TestRecommendAndAutoAdd(t *testing.T) {
	env := newTestEnv(t)
	recs, err := env.Engine.Recommend(env.Ctx, env.Session, 0)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) != 10 {
		t.Fatalf("recommendation count = %d", len(recs))
	}
	bestIdx := -1
	for _, r := range recs {
		if r.IsBest {
			bestIdx = r.TemplateIdx
		}
		if !r.OkeyToTake && r.Score != nil {
			t.Fatalf("%s ineligible with score", r.TemplateName)
		}
	}
	if bestIdx < 0 {
		t.Fatal("no best recommendation on an empty timeline")
	}

	snap, err := env.Engine.AutoAdd(env.Ctx, env.Session, "tester")
	if err != nil {
		t.Fatalf("autoAdd: %v", err)
	}
	if len(snap.Instances) != 1 || snap.Instances[0].TemplateIdx != bestIdx {
		t.Fatalf("autoAdd picked %+v, recommend said %d", snap.Instances, bestIdx)
	}
}

func TestAutoComplete(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.Engine.AutoComplete(env.Ctx, env.Session, "tester")
	if err != nil {
		t.Fatalf("autoComplete: %v", err)
	}
	if out.InsertedCount == 0 {
		t.Fatal("nothing inserted")
	}
	if out.Snapshot.TotalTime > out.Snapshot.TimeBudget {
		t.Fatalf("budget exceeded: %d > %d", out.Snapshot.TotalTime, out.Snapshot.TimeBudget)
	}
	// Second run must be a no-op from the persisted state.
	again, err := env.Engine.AutoComplete(env.Ctx, env.Session, "tester")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if out.GoalReached && again.InsertedCount != 0 {
		t.Fatalf("completed session grew by %d", again.InsertedCount)
	}
}

func TestAutoAddFailureIsClean(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.CreateSession(env.Ctx, engine.SessionCreateOptions{
		Name:    "done-already",
		Start:   "(0.5;0.5)",
		Goal:    "(0.5;0.5)",
		ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.AutoAdd(env.Ctx, s.ID, "tester")
	if !errors.Is(err, recommend.ErrNoEligibleActivity) {
		t.Fatalf("got %v", err)
	}
	snap, _ := env.Engine.State(env.Ctx, s.ID)
	if len(snap.Instances) != 0 {
		t.Fatal("failed autoAdd persisted a step")
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	list, err := env.Engine.ListSessions(env.Ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	s, err := env.Engine.RenameSession(env.Ctx, env.Session, "renamed", "tester")
	if err != nil || s.Name != "renamed" {
		t.Fatalf("rename: %v %+v", err, s)
	}
	if err := env.Engine.DeleteSession(env.Ctx, env.Session, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.GetSession(env.Ctx, env.Session); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := env.Engine.DeleteSession(env.Ctx, env.Session, "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}

func TestCustomLibrary(t *testing.T) {
	env := newTestEnv(t)
	doc := `dims: 1
templates:
  - name: OnlyOne
    pcond: "(0.0)"
    effect:
      max: "(0.5)"
    time:
      default: 10
    max_repetition: 2
    plane: class
`
	s, err := env.Engine.CreateSession(env.Ctx, engine.SessionCreateOptions{
		Name:        "custom",
		Start:       "(0.0)",
		Goal:        "(0.8)",
		LibraryYAML: doc,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Dims != 1 {
		t.Fatalf("dims = %d", s.Dims)
	}
	views, err := env.Engine.Templates(env.Ctx, s.ID)
	if err != nil || len(views) != 1 || views[0].Name != "OnlyOne" {
		t.Fatalf("templates: %v %+v", err, views)
	}
	out, err := env.Engine.AutoComplete(env.Ctx, s.ID, "tester")
	if err != nil {
		t.Fatalf("autoComplete: %v", err)
	}
	if !out.GoalReached || out.InsertedCount != 2 {
		t.Fatalf("outcome: %+v", out)
	}
}

func TestImportLibraryBlockedByTimeline(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, 0, 0)
	doc := `dims: 2
templates:
  - name: X
    pcond: "(0.0;0.0)"
    effect:
      max: "(0.1;0.1)"
    time:
      default: 5
    max_repetition: 1
    plane: class
`
	if err := env.Engine.ImportLibrary(env.Ctx, env.Session, doc, "tester"); err == nil {
		t.Fatal("import allowed with a populated timeline")
	}
	if _, err := env.Engine.Reset(env.Ctx, env.Session, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.ImportLibrary(env.Ctx, env.Session, doc, "tester"); err != nil {
		t.Fatalf("import after reset: %v", err)
	}
	views, err := env.Engine.Templates(env.Ctx, env.Session)
	if err != nil || len(views) != 1 {
		t.Fatalf("templates after import: %v %d", err, len(views))
	}
}

func TestAddTemplate(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, 0, 0)

	spec := library.TemplateSpec{
		Name:          "PeerQuiz",
		PCond:         "(0.1;0.0)",
		Effect:        library.EffectSpec{Max: "(0.2;0.1)"},
		Time:          library.TimeSpec{Default: 10},
		MaxRepetition: 2,
		Plane:         "team",
	}
	views, err := env.Engine.AddTemplate(env.Ctx, env.Session, spec, "tester")
	if err != nil {
		t.Fatalf("add template: %v", err)
	}
	if len(views) != 11 || views[10].Name != "PeerQuiz" || views[10].Idx != 10 {
		t.Fatalf("catalog after add: %+v", views[len(views)-1])
	}

	// Persisted and immediately usable on the existing timeline.
	mustInsert(t, env, 10, 1)
	snap, err := env.Engine.State(env.Ctx, env.Session)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(snap.Instances) != 2 || snap.Instances[1].TemplateName != "PeerQuiz" {
		t.Fatalf("timeline after add: %+v", snap.Instances)
	}

	if _, err := env.Engine.AddTemplate(env.Ctx, env.Session, spec, "tester"); err == nil {
		t.Fatal("duplicate template name accepted")
	}
}

func TestExportLibrary(t *testing.T) {
	env := newTestEnv(t)
	data, err := env.Engine.ExportLibrary(env.Ctx, env.Session)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty export")
	}
}

func TestEventsLogged(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, 0, 0)
	if _, err := env.Engine.Remove(env.Ctx, env.Session, 0, "tester"); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.ListEvents(env.Ctx, env.Session, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	types := map[string]bool{}
	for _, e := range evts {
		types[e.Type] = true
	}
	for _, want := range []string{"session.created", "timeline.inserted", "timeline.removed"} {
		if !types[want] {
			t.Errorf("missing event %s in %v", want, types)
		}
	}
}

func mustInsert(t *testing.T, env testEnv, templateIdx, position int) {
	t.Helper()
	if _, err := env.Engine.Insert(env.Ctx, engine.InsertOptions{
		SessionID:   env.Session,
		TemplateIdx: templateIdx,
		Position:    position,
		ActorID:     "tester",
	}); err != nil {
		t.Fatalf("insert %d at %d: %v", templateIdx, position, err)
	}
}
