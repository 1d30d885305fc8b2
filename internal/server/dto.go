package server

// Request payloads

type CreateSessionRequest struct {
	ID          *string `json:"id,omitempty"`
	Name        string  `json:"name"`
	Start       *string `json:"start,omitempty" example:"(0.0;0.0)"`
	Goal        *string `json:"goal,omitempty" example:"(0.9;0.9)"`
	TimeBudget  *int    `json:"time_budget,omitempty"`
	LibraryYAML *string `json:"library_yaml,omitempty"`
}

type RenameSessionRequest struct {
	Name string `json:"name"`
}

type InsertActivityRequest struct {
	TemplateIdx int     `json:"template_idx"`
	Position    int     `json:"position"`
	Duration    *int    `json:"duration,omitempty"`
	Plane       *string `json:"plane,omitempty" enum:"individual,team,class"`
}

type ChangePlaneRequest struct {
	Plane string `json:"plane" enum:"individual,team,class"`
}

type ExchangeRequest struct {
	PosA int `json:"pos_a"`
	PosB int `json:"pos_b"`
}

type AddTemplateRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PCond         string `json:"pcond" example:"(0.3;0.2)"`
	EffectMin     string `json:"effect_min,omitempty" example:"(0.1;0.0)"`
	EffectMax     string `json:"effect_max" example:"(0.4;0.1)"`
	MinTime       int    `json:"min_time,omitempty"`
	MaxTime       int    `json:"max_time,omitempty"`
	DefaultTime   int    `json:"default_time"`
	MaxRepetition int    `json:"max_repetition"`
	Plane         string `json:"plane" enum:"individual,team,class"`
	Explanation   string `json:"explanation,omitempty"`
	Sources       string `json:"sources,omitempty"`
}

type ImportLibraryRequest struct {
	YAML string `json:"yaml"`
}

type LibraryResponse struct {
	YAML string `json:"yaml"`
}

type PlaneResponse struct {
	Plane       int    `json:"plane"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AutoCompleteResponse struct {
	InsertedCount int  `json:"inserted_count"`
	GoalReached   bool `json:"goal_reached"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}
