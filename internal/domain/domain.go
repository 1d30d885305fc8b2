package domain

// Session is a stored orchestration session: the stable persisted contract is
// start/goal/budget plus the ordered step triples; derived fields are
// regenerated by replaying the steps, never trusted from storage.
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Dims       int       `json:"dims"`
	Start      []float64 `json:"start"`
	Goal       []float64 `json:"goal"`
	TimeBudget int       `json:"time_budget"`
	CreatedAt  string    `json:"created_at" format:"date-time"`
	UpdatedAt  string    `json:"updated_at" format:"date-time"`
}

// Step is one persisted timeline entry.
type Step struct {
	TemplateIdx int `json:"template_idx"`
	Duration    int `json:"duration"`
	Plane       int `json:"plane"`
}

// InstanceView is one placed activity with its derived fields.
type InstanceView struct {
	TemplateIdx  int       `json:"template_idx"`
	TemplateName string    `json:"template_name"`
	Duration     int       `json:"duration"`
	Plane        int       `json:"plane"`
	PlaneName    string    `json:"plane_name"`
	StartsAfter  int       `json:"starts_after"`
	EndsAfter    int       `json:"ends_after"`
	StateBefore  []float64 `json:"state_before"`
	StateAfter   []float64 `json:"state_after"`
}

// GapInfo describes one boundary between consecutive timeline states.
type GapInfo struct {
	Position int       `json:"position"`
	From     []float64 `json:"from"`
	To       []float64 `json:"to"`
	Distance float64   `json:"distance"`
	IsHard   bool      `json:"is_hard"`
}

// GraphSnapshot is the full derived state of a session's timeline.
type GraphSnapshot struct {
	SessionID            string         `json:"session_id,omitempty"`
	Instances            []InstanceView `json:"instances"`
	Start                []float64      `json:"start"`
	Goal                 []float64      `json:"goal"`
	Reached              []float64      `json:"reached"`
	TotalTime            int            `json:"total_time"`
	TimeBudget           int            `json:"time_budget"`
	HardGapList          []int          `json:"hard_gap_list"`
	RemainingGapDistance float64        `json:"remaining_gap_distance"`
	GoalReached          bool           `json:"goal_reached"`
	Gaps                 []GapInfo      `json:"gaps"`
}

// Flags marks why a template is ineligible for a gap.
type Flags struct {
	Exhausted  bool `json:"exhausted"`
	TooLong    bool `json:"too_long"`
	NoProgress bool `json:"no_progress"`
}

// Recommendation is one scored template for a gap. Score is nil whenever the
// template is not eligible.
type Recommendation struct {
	TemplateIdx  int      `json:"template_idx"`
	TemplateName string   `json:"template_name"`
	Score        *float64 `json:"score"`
	Flags        Flags    `json:"flags"`
	OkeyToTake   bool     `json:"okey_to_take"`
	IsBest       bool     `json:"is_best"`
}

// TemplateView is the API shape of a library template.
type TemplateView struct {
	Idx           int       `json:"idx"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	PCond         []float64 `json:"pcond"`
	MinEffect     []float64 `json:"min_effect"`
	MaxEffect     []float64 `json:"max_effect"`
	MinT          int       `json:"min_time"`
	MaxT          int       `json:"max_time"`
	DefT          int       `json:"default_time"`
	Adjustable    bool      `json:"adjustable"`
	MaxRepetition int       `json:"max_repetition"`
	DefPlane      int       `json:"default_plane"`
	PlaneName     string    `json:"plane_name"`
	Explanation   string    `json:"explanation,omitempty"`
	Sources       string    `json:"sources,omitempty"`
}

// Event is one audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
