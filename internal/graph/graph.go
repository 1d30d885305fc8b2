package graph

import (
	"fmt"

	"lessonline/internal/domain"
	"lessonline/internal/library"
	"lessonline/internal/vector"
)

// DefaultThreshold is the forward distance above which a boundary counts as a
// hard gap.
const DefaultThreshold = 0.05

// Instance is one placement of a template on the timeline. Its derived
// fields are owned by the graph's recompute pass and are never authoritative
// outside it.
type Instance struct {
	Template *library.Template
	Duration int
	Plane    int

	StartsAfter int
	StateBefore vector.Vector
	StateAfter  vector.Vector

	effect vector.Vector // resolved at placement; duration never changes
}

// EndsAfter returns the cumulative minute at which the instance ends.
func (in *Instance) EndsAfter() int { return in.StartsAfter + in.Duration }

// Boundary is one pair of consecutive timeline states: the state flowing in
// and the requirement it must cover.
type Boundary struct {
	Position int
	From     vector.Vector
	To       vector.Vector
	Distance float64
	IsHard   bool
}

// Gaps is the result of a gap evaluation pass.
type Gaps struct {
	Positions []int
	Distances []float64
	Total     float64
}

// Graph is the ordered, non-overlapping timeline of activity instances for
// one session. All mutations validate fully before touching state and end
// with a forward recompute of the affected suffix.
type Graph struct {
	lib        *library.Library
	start      vector.Vector
	goal       vector.Vector
	timeBudget int
	threshold  float64

	instances []*Instance
	usage     map[int]int
	totalTime int
	reached   vector.Vector

	hardGaps      []int
	remainingDist float64
}

// New creates an empty graph. A zero threshold selects DefaultThreshold.
func New(lib *library.Library, timeBudget int, start, goal vector.Vector, threshold float64) (*Graph, error) {
	if timeBudget <= 0 {
		return nil, ValidationError{Field: "timeBudget", Msg: fmt.Sprintf("must be positive, got %d", timeBudget)}
	}
	if start.Dims() != lib.Dims() {
		return nil, ValidationError{Field: "start", Msg: fmt.Sprintf("has %d dims, library uses %d", start.Dims(), lib.Dims())}
	}
	if goal.Dims() != lib.Dims() {
		return nil, ValidationError{Field: "goal", Msg: fmt.Sprintf("has %d dims, library uses %d", goal.Dims(), lib.Dims())}
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	g := &Graph{
		lib:        lib,
		start:      start,
		goal:       goal,
		timeBudget: timeBudget,
		threshold:  threshold,
		usage:      map[int]int{},
		reached:    start,
	}
	g.refreshGaps()
	return g, nil
}

// Accessors.

func (g *Graph) Library() *library.Library { return g.lib }
func (g *Graph) Start() vector.Vector      { return g.start }
func (g *Graph) Goal() vector.Vector       { return g.goal }
func (g *Graph) TimeBudget() int           { return g.timeBudget }
func (g *Graph) Threshold() float64        { return g.threshold }
func (g *Graph) TotalTime() int            { return g.totalTime }
func (g *Graph) Len() int                  { return len(g.instances) }

// Reached returns the state after the last instance, or start when empty.
func (g *Graph) Reached() vector.Vector { return g.reached }

// Instance returns the placement at position.
func (g *Graph) Instance(position int) (*Instance, error) {
	if position < 0 || position >= len(g.instances) {
		return nil, errPosition("position", position, len(g.instances)-1)
	}
	return g.instances[position], nil
}

// Instances returns the timeline in order.
func (g *Graph) Instances() []*Instance { return g.instances }

// UsageCount returns how many placements of templateIdx the graph holds.
func (g *Graph) UsageCount(templateIdx int) int { return g.usage[templateIdx] }

// RemainingTime returns the unspent part of the time budget.
func (g *Graph) RemainingTime() int { return g.timeBudget - g.totalTime }

// GoalReached reports whether the final state covers the goal.
func (g *Graph) GoalReached() bool { return g.reached.IsPast(g.goal) }

// HardGaps returns the boundary positions currently above threshold.
func (g *Graph) HardGaps() []int {
	out := make([]int, len(g.hardGaps))
	copy(out, g.hardGaps)
	return out
}

// RemainingGapDistance returns the summed distance of all hard gaps.
func (g *Graph) RemainingGapDistance() float64 { return g.remainingDist }

// StateAt returns the state flowing into boundary position p: the stateAfter
// of the instance before p, or start for p == 0.
func (g *Graph) StateAt(position int) vector.Vector {
	if position <= 0 {
		return g.start
	}
	if position > len(g.instances) {
		position = len(g.instances)
	}
	return g.instances[position-1].StateAfter
}

// TargetAt returns the requirement at boundary position p: the pcond of the
// instance at p, or the goal past the last instance.
func (g *Graph) TargetAt(position int) vector.Vector {
	if position >= 0 && position < len(g.instances) {
		return g.instances[position].Template.PCond
	}
	return g.goal
}

// InsertOptions carries the optional arguments of Insert. Nil fields fall
// back to the template's defaults.
type InsertOptions struct {
	Plane    *int
	Duration *int
}

// Insert validates, splices a new instance at position and recomputes the
// suffix from there.
func (g *Graph) Insert(templateIdx, position int, opts InsertOptions) error {
	if templateIdx < 0 || templateIdx >= g.lib.Len() {
		return errTemplate(templateIdx, g.lib.Len())
	}
	if position < 0 || position > len(g.instances) {
		return errPosition("position", position, len(g.instances))
	}
	tmpl, err := g.lib.Template(templateIdx)
	if err != nil {
		return err
	}
	plane := tmpl.DefPlane
	if opts.Plane != nil {
		if *opts.Plane < 0 || *opts.Plane >= library.PlaneCount {
			return errPlane(*opts.Plane, library.PlaneCount)
		}
		plane = *opts.Plane
	}
	duration := tmpl.DefT()
	if opts.Duration != nil {
		duration = *opts.Duration
	}
	effect, err := tmpl.Effect.EffectAt(duration)
	if err != nil {
		return err
	}

	inst := &Instance{
		Template: tmpl,
		Duration: duration,
		Plane:    plane,
		effect:   effect,
	}
	g.instances = append(g.instances, nil)
	copy(g.instances[position+1:], g.instances[position:])
	g.instances[position] = inst
	g.usage[templateIdx]++
	g.recomputeFrom(position)
	return nil
}

// Remove deletes the instance at position and recomputes the suffix.
func (g *Graph) Remove(position int) error {
	if position < 0 || position >= len(g.instances) {
		return errPosition("position", position, len(g.instances)-1)
	}
	inst := g.instances[position]
	g.instances = append(g.instances[:position], g.instances[position+1:]...)
	g.usage[inst.Template.Idx]--
	g.recomputeFrom(position)
	return nil
}

// ChangePlane sets the plane of the instance at position. The plane is
// organizational only, so no recompute happens.
func (g *Graph) ChangePlane(position, plane int) error {
	if position < 0 || position >= len(g.instances) {
		return errPosition("position", position, len(g.instances)-1)
	}
	if plane < 0 || plane >= library.PlaneCount {
		return errPlane(plane, library.PlaneCount)
	}
	g.instances[position].Plane = plane
	return nil
}

// Exchange swaps the placements at posA and posB and recomputes from the
// earlier of the two.
func (g *Graph) Exchange(posA, posB int) error {
	if posA < 0 || posA >= len(g.instances) {
		return errPosition("posA", posA, len(g.instances)-1)
	}
	if posB < 0 || posB >= len(g.instances) {
		return errPosition("posB", posB, len(g.instances)-1)
	}
	if posA == posB {
		return nil
	}
	g.instances[posA], g.instances[posB] = g.instances[posB], g.instances[posA]
	from := posA
	if posB < from {
		from = posB
	}
	g.recomputeFrom(from)
	return nil
}

// Reset clears the timeline.
func (g *Graph) Reset() {
	g.instances = nil
	g.usage = map[int]int{}
	g.recomputeFrom(0)
}

// recomputeFrom runs the forward state cascade over the suffix starting at
// position: stateBefore = max(incoming, pcond), stateAfter = stateBefore +
// effect, startsAfter = end of the previous instance.
func (g *Graph) recomputeFrom(position int) {
	if position < 0 {
		position = 0
	}
	incoming := g.start
	cumulative := 0
	if position > 0 {
		prev := g.instances[position-1]
		incoming = prev.StateAfter
		cumulative = prev.EndsAfter()
	}
	for i := position; i < len(g.instances); i++ {
		inst := g.instances[i]
		inst.StartsAfter = cumulative
		inst.StateBefore = incoming.NeedToReach(inst.Template.PCond)
		inst.StateAfter = inst.StateBefore.Plus(inst.effect)
		incoming = inst.StateAfter
		cumulative = inst.EndsAfter()
	}
	g.reached = incoming
	g.totalTime = cumulative
	g.refreshGaps()
}

// Boundaries walks every consecutive state/requirement pair: start against
// the first pcond (or the goal when empty), each stateAfter against the next
// pcond, and the last stateAfter against the goal.
func (g *Graph) Boundaries() []Boundary {
	n := len(g.instances)
	out := make([]Boundary, 0, n+1)
	for p := 0; p <= n; p++ {
		from := g.StateAt(p)
		to := g.TargetAt(p)
		d := from.ForwardDistance(to)
		out = append(out, Boundary{
			Position: p,
			From:     from,
			To:       to,
			Distance: d,
			IsHard:   d > g.threshold,
		})
	}
	return out
}

// EvaluateGaps recomputes the hard-gap list from the current state. It is
// pure: repeated calls without an intervening mutation return identical
// results.
func (g *Graph) EvaluateGaps() Gaps {
	var gaps Gaps
	for _, b := range g.Boundaries() {
		if b.IsHard {
			gaps.Positions = append(gaps.Positions, b.Position)
			gaps.Distances = append(gaps.Distances, b.Distance)
			gaps.Total += b.Distance
		}
	}
	return gaps
}

func (g *Graph) refreshGaps() {
	gaps := g.EvaluateGaps()
	g.hardGaps = gaps.Positions
	g.remainingDist = gaps.Total
}

// Snapshot renders the graph's full derived state.
func (g *Graph) Snapshot() domain.GraphSnapshot {
	snap := domain.GraphSnapshot{
		Instances:            make([]domain.InstanceView, 0, len(g.instances)),
		Start:                g.start.Values(),
		Goal:                 g.goal.Values(),
		Reached:              g.reached.Values(),
		TotalTime:            g.totalTime,
		TimeBudget:           g.timeBudget,
		HardGapList:          g.HardGaps(),
		RemainingGapDistance: g.remainingDist,
		GoalReached:          g.GoalReached(),
	}
	for _, inst := range g.instances {
		snap.Instances = append(snap.Instances, domain.InstanceView{
			TemplateIdx:  inst.Template.Idx,
			TemplateName: inst.Template.Name,
			Duration:     inst.Duration,
			Plane:        inst.Plane,
			PlaneName:    library.PlaneName(inst.Plane),
			StartsAfter:  inst.StartsAfter,
			EndsAfter:    inst.EndsAfter(),
			StateBefore:  inst.StateBefore.Values(),
			StateAfter:   inst.StateAfter.Values(),
		})
	}
	for _, b := range g.Boundaries() {
		snap.Gaps = append(snap.Gaps, domain.GapInfo{
			Position: b.Position,
			From:     b.From.Values(),
			To:       b.To.Values(),
			Distance: b.Distance,
			IsHard:   b.IsHard,
		})
	}
	return snap
}

// Steps returns the stable serialization triples in timeline order.
func (g *Graph) Steps() []domain.Step {
	steps := make([]domain.Step, 0, len(g.instances))
	for _, inst := range g.instances {
		steps = append(steps, domain.Step{
			TemplateIdx: inst.Template.Idx,
			Duration:    inst.Duration,
			Plane:       inst.Plane,
		})
	}
	return steps
}

// Replay rebuilds a graph from persisted steps by running each through
// Insert, regenerating every derived field.
func Replay(lib *library.Library, timeBudget int, start, goal vector.Vector, threshold float64, steps []domain.Step) (*Graph, error) {
	g, err := New(lib, timeBudget, start, goal, threshold)
	if err != nil {
		return nil, err
	}
	for i, s := range steps {
		plane := s.Plane
		duration := s.Duration
		if err := g.Insert(s.TemplateIdx, i, InsertOptions{Plane: &plane, Duration: &duration}); err != nil {
			return nil, fmt.Errorf("replay step %d: %w", i, err)
		}
	}
	return g, nil
}
