package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lessonline/internal/config"
	"lessonline/internal/domain"
	"lessonline/internal/events"
	"lessonline/internal/graph"
	"lessonline/internal/library"
	"lessonline/internal/recommend"
	"lessonline/internal/repo"
	"lessonline/internal/vector"
)

// Engine owns all session orchestration. Every mutation runs under the
// session's lock, replays the persisted steps into a graph, applies the
// change and writes the new step list plus an event in one transaction.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db *sql.DB, cfg *config.Config) *Engine {
	return &Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
		locks:  map[string]*sync.Mutex{},
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// lockSession serializes writers per session.
func (e *Engine) lockSession(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// SessionCreateOptions are parameters for creating a session. Empty vector
// literals and a zero budget fall back to the configured defaults.
type SessionCreateOptions struct {
	ID          string
	Name        string
	Start       string
	Goal        string
	TimeBudget  int
	LibraryYAML string
	ActorID     string
}

func (e *Engine) CreateSession(ctx context.Context, opts SessionCreateOptions) (domain.Session, error) {
	if e.Config == nil {
		return domain.Session{}, errors.New("config not loaded")
	}
	if opts.Name == "" {
		return domain.Session{}, errors.New("name is required")
	}

	lib := e.defaultLibrary()
	if opts.LibraryYAML != "" {
		custom, err := library.FromYAML([]byte(opts.LibraryYAML))
		if err != nil {
			return domain.Session{}, err
		}
		lib = custom
	}

	start := e.Config.StartVector()
	if opts.Start != "" {
		v, err := vector.Parse(opts.Start)
		if err != nil {
			return domain.Session{}, fmt.Errorf("start: %w", err)
		}
		start = v
	}
	goal := e.Config.GoalVector()
	if opts.Goal != "" {
		v, err := vector.Parse(opts.Goal)
		if err != nil {
			return domain.Session{}, fmt.Errorf("goal: %w", err)
		}
		goal = v
	}
	budget := opts.TimeBudget
	if budget == 0 {
		budget = e.Config.Defaults.TimeBudget
	}

	// An empty graph build runs the full dims/budget validation.
	if _, err := graph.New(lib, budget, start, goal, e.Config.Orchestration.GapThreshold); err != nil {
		return domain.Session{}, err
	}

	id := opts.ID
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.Name+"|"+now)).String()
	}
	s := domain.Session{
		ID:         id,
		Name:       opts.Name,
		Dims:       lib.Dims(),
		Start:      start.Values(),
		Goal:       goal.Values(),
		TimeBudget: budget,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertSession(ctx, tx, s); err != nil {
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	if opts.LibraryYAML != "" {
		if err := e.Repo.UpsertLibrary(ctx, tx, s.ID, opts.LibraryYAML); err != nil {
			return domain.Session{}, fmt.Errorf("insert library: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "session.created", s.ID, "session", s.ID, opts.ActorID, events.EventPayload{
		"name":        s.Name,
		"time_budget": s.TimeBudget,
	}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func (e *Engine) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return e.Repo.ListSessions(ctx)
}

func (e *Engine) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return e.Repo.GetSession(ctx, id)
}

func (e *Engine) RenameSession(ctx context.Context, id, name, actorID string) (domain.Session, error) {
	if name == "" {
		return domain.Session{}, errors.New("name is required")
	}
	unlock := e.lockSession(id)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, err
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.RenameSession(ctx, tx, id, name, now); err != nil {
		return domain.Session{}, err
	}
	if err := e.Events.Append(ctx, tx, "session.renamed", id, "session", id, actorID, events.EventPayload{"name": name}); err != nil {
		return domain.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Session{}, err
	}
	return e.Repo.GetSession(ctx, id)
}

func (e *Engine) DeleteSession(ctx context.Context, id, actorID string) error {
	unlock := e.lockSession(id)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.ErrNotFound
	}
	// The event outlives the session row for audit purposes.
	if err := e.Events.Append(ctx, tx, "session.deleted", "", "session", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// defaultLibrary resolves the shared catalog: a configured path wins over the
// embedded one.
func (e *Engine) defaultLibrary() *library.Library {
	if e.Config != nil && e.Config.Library.Path != "" {
		if lib, err := library.FromFile(e.Config.Library.Path); err == nil {
			return lib
		}
	}
	return library.Default()
}

// libraryFor returns the session's catalog, custom or shared.
func (e *Engine) libraryFor(ctx context.Context, sessionID string) (*library.Library, error) {
	doc, err := e.Repo.GetLibrary(ctx, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return e.defaultLibrary(), nil
	}
	if err != nil {
		return nil, err
	}
	return library.FromYAML([]byte(doc))
}

// loadGraph replays the persisted steps of a session; stored derived state is
// never trusted.
func (e *Engine) loadGraph(ctx context.Context, sessionID string) (domain.Session, *graph.Graph, error) {
	s, err := e.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	lib, err := e.libraryFor(ctx, sessionID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	steps, err := e.Repo.ListSteps(ctx, sessionID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	g, err := graph.Replay(lib, s.TimeBudget, vector.New(s.Start...), vector.New(s.Goal...), e.threshold(), steps)
	if err != nil {
		return domain.Session{}, nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return s, g, nil
}

func (e *Engine) threshold() float64 {
	if e.Config != nil {
		return e.Config.Orchestration.GapThreshold
	}
	return graph.DefaultThreshold
}

func (e *Engine) ceiling() int {
	if e.Config != nil {
		return e.Config.Orchestration.AutoCompleteCeiling
	}
	return recommend.DefaultCeiling
}

// saveGraph persists the new step list and an event describing the mutation.
func (e *Engine) saveGraph(ctx context.Context, sessionID string, g *graph.Graph, evtType, actorID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceSteps(ctx, tx, sessionID, g.Steps()); err != nil {
		return fmt.Errorf("replace steps: %w", err)
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.TouchSession(ctx, tx, sessionID, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, evtType, sessionID, "timeline", sessionID, actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) snapshot(sessionID string, g *graph.Graph) domain.GraphSnapshot {
	snap := g.Snapshot()
	snap.SessionID = sessionID
	return snap
}

// State returns the current snapshot of a session's timeline.
func (e *Engine) State(ctx context.Context, sessionID string) (domain.GraphSnapshot, error) {
	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	return e.snapshot(sessionID, g), nil
}

// InsertOptions are parameters for placing an activity on a timeline.
type InsertOptions struct {
	SessionID   string
	TemplateIdx int
	Position    int
	Duration    *int
	Plane       *int
	ActorID     string
}

func (e *Engine) Insert(ctx context.Context, opts InsertOptions) (domain.GraphSnapshot, error) {
	unlock := e.lockSession(opts.SessionID)
	defer unlock()

	_, g, err := e.loadGraph(ctx, opts.SessionID)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	if err := g.Insert(opts.TemplateIdx, opts.Position, graph.InsertOptions{Plane: opts.Plane, Duration: opts.Duration}); err != nil {
		return domain.GraphSnapshot{}, err
	}
	inst, _ := g.Instance(opts.Position)
	if err := e.saveGraph(ctx, opts.SessionID, g, "timeline.inserted", opts.ActorID, events.EventPayload{
		"template": inst.Template.Name,
		"position": opts.Position,
		"duration": inst.Duration,
		"plane":    library.PlaneName(inst.Plane),
	}); err != nil {
		return domain.GraphSnapshot{}, err
	}
	return e.snapshot(opts.SessionID, g), nil
}

func (e *Engine) Remove(ctx context.Context, sessionID string, position int, actorID string) (domain.GraphSnapshot, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	inst, err := g.Instance(position)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	name := inst.Template.Name
	if err := g.Remove(position); err != nil {
		return domain.GraphSnapshot{}, err
	}
	if err := e.saveGraph(ctx, sessionID, g, "timeline.removed", actorID, events.EventPayload{
		"template": name,
		"position": position,
	}); err != nil {
		return domain.GraphSnapshot{}, err
	}
	return e.snapshot(sessionID, g), nil
}

func (e *Engine) ChangePlane(ctx context.Context, sessionID string, position, plane int, actorID string) (domain.GraphSnapshot, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	if err := g.ChangePlane(position, plane); err != nil {
		return domain.GraphSnapshot{}, err
	}
	if err := e.saveGraph(ctx, sessionID, g, "timeline.plane_changed", actorID, events.EventPayload{
		"position": position,
		"plane":    library.PlaneName(plane),
	}); err != nil {
		return domain.GraphSnapshot{}, err
	}
	return e.snapshot(sessionID, g), nil
}

func (e *Engine) Exchange(ctx context.Context, sessionID string, posA, posB int, actorID string) (domain.GraphSnapshot, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	if err := g.Exchange(posA, posB); err != nil {
		return domain.GraphSnapshot{}, err
	}
	if err := e.saveGraph(ctx, sessionID, g, "timeline.exchanged", actorID, events.EventPayload{
		"pos_a": posA,
		"pos_b": posB,
	}); err != nil {
		return domain.GraphSnapshot{}, err
	}
	return e.snapshot(sessionID, g), nil
}

func (e *Engine) Reset(ctx context.Context, sessionID, actorID string) (domain.GraphSnapshot, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	g.Reset()
	if err := e.saveGraph(ctx, sessionID, g, "timeline.reset", actorID, nil); err != nil {
		return domain.GraphSnapshot{}, err
	}
	return e.snapshot(sessionID, g), nil
}

// Gaps returns the detailed boundary walk of a session's timeline.
func (e *Engine) Gaps(ctx context.Context, sessionID string) ([]domain.GapInfo, error) {
	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.snapshot(sessionID, g).Gaps, nil
}

// Recommend scores every template against the gap boundary at position.
func (e *Engine) Recommend(ctx context.Context, sessionID string, position int) ([]domain.Recommendation, error) {
	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cands, err := recommend.Evaluate(g, position)
	if err != nil {
		return nil, err
	}
	return recommend.Views(cands), nil
}

func (e *Engine) AutoAdd(ctx context.Context, sessionID, actorID string) (domain.GraphSnapshot, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	pos, err := recommend.AutoAdd(g)
	if err != nil {
		return domain.GraphSnapshot{}, err
	}
	inst, _ := g.Instance(pos)
	if err := e.saveGraph(ctx, sessionID, g, "timeline.auto_added", actorID, events.EventPayload{
		"template": inst.Template.Name,
		"position": pos,
	}); err != nil {
		return domain.GraphSnapshot{}, err
	}
	return e.snapshot(sessionID, g), nil
}

// AutoCompleteOutcome is the result of an auto-complete run, snapshot
// included. GoalReached false is a soft signal.
type AutoCompleteOutcome struct {
	InsertedCount int
	GoalReached   bool
	Snapshot      domain.GraphSnapshot
}

func (e *Engine) AutoComplete(ctx context.Context, sessionID, actorID string) (AutoCompleteOutcome, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	_, g, err := e.loadGraph(ctx, sessionID)
	if err != nil {
		return AutoCompleteOutcome{}, err
	}
	res, err := recommend.AutoComplete(g, e.ceiling())
	if err != nil {
		return AutoCompleteOutcome{}, err
	}
	if res.InsertedCount > 0 {
		if err := e.saveGraph(ctx, sessionID, g, "timeline.auto_completed", actorID, events.EventPayload{
			"inserted":     res.InsertedCount,
			"goal_reached": res.GoalReached,
		}); err != nil {
			return AutoCompleteOutcome{}, err
		}
	}
	return AutoCompleteOutcome{
		InsertedCount: res.InsertedCount,
		GoalReached:   res.GoalReached,
		Snapshot:      e.snapshot(sessionID, g),
	}, nil
}

// Templates lists the session's catalog in API shape.
func (e *Engine) Templates(ctx context.Context, sessionID string) ([]domain.TemplateView, error) {
	lib, err := e.libraryFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		if _, err := e.Repo.GetSession(ctx, sessionID); err != nil {
			return nil, err
		}
	}
	return TemplateViews(lib), nil
}

// ImportLibrary replaces a session's catalog. Rejected while the timeline is
// non-empty: existing steps index into the old catalog.
func (e *Engine) ImportLibrary(ctx context.Context, sessionID, yamlDoc, actorID string) error {
	unlock := e.lockSession(sessionID)
	defer unlock()

	if _, err := library.FromYAML([]byte(yamlDoc)); err != nil {
		return err
	}
	steps, err := e.Repo.ListSteps(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(steps) > 0 {
		return errors.New("cannot replace library while timeline has activities; reset first")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertLibrary(ctx, tx, sessionID, yamlDoc); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "library.imported", sessionID, "library", sessionID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AddTemplate appends a template to the session's catalog. Append-only keeps
// every stored step index valid, so a non-empty timeline is fine. A session on
// the shared catalog gets its own copy first.
func (e *Engine) AddTemplate(ctx context.Context, sessionID string, spec library.TemplateSpec, actorID string) ([]domain.TemplateView, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	if _, err := e.Repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	lib, err := e.libraryFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx, err := lib.AddSpec(&spec)
	if err != nil {
		return nil, err
	}
	data, err := lib.ToYAML()
	if err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertLibrary(ctx, tx, sessionID, string(data)); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "library.template_added", sessionID, "library", sessionID, actorID, events.EventPayload{
		"name": spec.Name,
		"idx":  idx,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return TemplateViews(lib), nil
}

// ExportLibrary returns the session's catalog as YAML.
func (e *Engine) ExportLibrary(ctx context.Context, sessionID string) ([]byte, error) {
	lib, err := e.libraryFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return lib.ToYAML()
}

// ListEvents returns the most recent audit entries, newest first.
func (e *Engine) ListEvents(ctx context.Context, sessionID string, limit int) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx, sessionID, limit)
}

// TemplateViews converts a catalog into its API shape.
func TemplateViews(lib *library.Library) []domain.TemplateView {
	out := make([]domain.TemplateView, 0, lib.Len())
	for _, t := range lib.Templates() {
		out = append(out, domain.TemplateView{
			Idx:           t.Idx,
			Name:          t.Name,
			Description:   t.Description,
			PCond:         t.PCond.Values(),
			MinEffect:     t.Effect.MinEffect.Values(),
			MaxEffect:     t.Effect.MaxEffect.Values(),
			MinT:          t.MinT(),
			MaxT:          t.MaxT(),
			DefT:          t.DefT(),
			Adjustable:    t.Adjustable(),
			MaxRepetition: t.MaxRepetition,
			DefPlane:      t.DefPlane,
			PlaneName:     library.PlaneName(t.DefPlane),
			Explanation:   t.Explanation,
			Sources:       t.Sources,
		})
	}
	return out
}
