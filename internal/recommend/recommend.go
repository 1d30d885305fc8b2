package recommend

import (
	"errors"
	"fmt"

	"lessonline/internal/domain"
	"lessonline/internal/graph"
)

// ErrNoEligibleActivity is returned when no template passes all eligibility
// flags for the selected gap. The graph is left untouched.
var ErrNoEligibleActivity = errors.New("no eligible activity for this gap")

// DefaultCeiling bounds the auto-complete loop so a cycling heuristic still
// terminates.
const DefaultCeiling = 100

// Candidate is one scored template for a gap position. Score carries the raw
// value only while OkeyToTake is set.
type Candidate struct {
	TemplateIdx     int
	TemplateName    string
	Score           float64
	DistanceRemoved float64
	Flags           domain.Flags
	OkeyToTake      bool
	IsBest          bool
}

// Evaluate scores every library template against the gap boundary at
// position: the state flowing in against the next requirement. Ineligible
// templates are kept in the result for display.
func Evaluate(g *graph.Graph, position int) ([]Candidate, error) {
	if position < 0 || position > g.Len() {
		return nil, graph.ValidationError{
			Field: "position",
			Msg:   fmt.Sprintf("position %d out of range [0,%d]", position, g.Len()),
		}
	}
	current := g.StateAt(position)
	target := g.TargetAt(position)
	distToTarget := current.ForwardDistance(target)
	remaining := g.RemainingTime()

	lib := g.Library()
	out := make([]Candidate, 0, lib.Len())
	best := -1
	for _, tmpl := range lib.Templates() {
		afterPrereq := current.NeedToReach(tmpl.PCond)
		afterActivity := afterPrereq.Plus(tmpl.Effect.Default())
		distToPrereq := current.ForwardDistance(afterPrereq)
		distRemaining := afterActivity.ForwardDistance(target)
		removed := distToTarget - distToPrereq - distRemaining

		c := Candidate{
			TemplateIdx:     tmpl.Idx,
			TemplateName:    tmpl.Name,
			DistanceRemoved: removed,
			Flags: domain.Flags{
				Exhausted:  g.UsageCount(tmpl.Idx) >= tmpl.MaxRepetition,
				TooLong:    tmpl.DefT() > remaining,
				NoProgress: removed <= 0,
			},
		}
		c.OkeyToTake = !c.Flags.Exhausted && !c.Flags.TooLong && !c.Flags.NoProgress
		if c.OkeyToTake {
			c.Score = removed / float64(tmpl.DefT())
			if best < 0 || c.Score > out[best].Score {
				best = len(out)
			}
		}
		out = append(out, c)
	}
	if best >= 0 {
		out[best].IsBest = true
	}
	return out, nil
}

// Views converts candidates into their API shape, nulling the score of every
// ineligible template.
func Views(cands []Candidate) []domain.Recommendation {
	out := make([]domain.Recommendation, 0, len(cands))
	for _, c := range cands {
		r := domain.Recommendation{
			TemplateIdx:  c.TemplateIdx,
			TemplateName: c.TemplateName,
			Flags:        c.Flags,
			OkeyToTake:   c.OkeyToTake,
			IsBest:       c.IsBest,
		}
		if c.OkeyToTake {
			s := c.Score
			r.Score = &s
		}
		out = append(out, r)
	}
	return out
}

// hardestGap returns the hard gap position with the greatest distance, ties
// going to the earliest position. ok is false when no hard gap exists.
func hardestGap(g *graph.Graph) (pos int, ok bool) {
	gaps := g.EvaluateGaps()
	bestDist := 0.0
	for i, p := range gaps.Positions {
		if !ok || gaps.Distances[i] > bestDist {
			pos, bestDist, ok = p, gaps.Distances[i], true
		}
	}
	return pos, ok
}

// AutoAdd picks the hardest hard gap, scores the library against it and
// inserts the best eligible template at that position with its default
// duration and plane. The graph is unchanged on failure.
func AutoAdd(g *graph.Graph) (int, error) {
	pos, ok := hardestGap(g)
	if !ok {
		return 0, ErrNoEligibleActivity
	}
	cands, err := Evaluate(g, pos)
	if err != nil {
		return 0, err
	}
	for _, c := range cands {
		if c.IsBest {
			if err := g.Insert(c.TemplateIdx, pos, graph.InsertOptions{}); err != nil {
				return 0, err
			}
			return pos, nil
		}
	}
	return 0, ErrNoEligibleActivity
}

// AutoCompleteResult reports the outcome of an auto-complete run. A false
// GoalReached is a soft signal, not an error.
type AutoCompleteResult struct {
	InsertedCount int
	GoalReached   bool
}

// AutoComplete runs AutoAdd until the goal is reached, no hard gap remains,
// no eligible template exists, or ceiling insertions have happened. A
// non-positive ceiling selects DefaultCeiling.
func AutoComplete(g *graph.Graph, ceiling int) (AutoCompleteResult, error) {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	var res AutoCompleteResult
	for res.InsertedCount < ceiling {
		if g.GoalReached() || len(g.HardGaps()) == 0 {
			break
		}
		if _, err := AutoAdd(g); err != nil {
			if errors.Is(err, ErrNoEligibleActivity) {
				break
			}
			return res, err
		}
		res.InsertedCount++
	}
	res.GoalReached = g.GoalReached()
	return res, nil
}
