package lessonlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Lessonline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Session represents the API session model.
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Dims       int       `json:"dims"`
	Start      []float64 `json:"start"`
	Goal       []float64 `json:"goal"`
	TimeBudget int       `json:"time_budget"`
	CreatedAt  string    `json:"created_at"`
	UpdatedAt  string    `json:"updated_at"`
}

// Instance is one placed activity on a timeline.
type Instance struct {
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

// Gap is one boundary of the gap report.
type Gap struct {
	Position int       `json:"position"`
	From     []float64 `json:"from"`
	To       []float64 `json:"to"`
	Distance float64   `json:"distance"`
	IsHard   bool      `json:"is_hard"`
}

// Snapshot is the derived state of a session timeline.
type Snapshot struct {
	SessionID            string     `json:"session_id"`
	Instances            []Instance `json:"instances"`
	Start                []float64  `json:"start"`
	Goal                 []float64  `json:"goal"`
	Reached              []float64  `json:"reached"`
	TotalTime            int        `json:"total_time"`
	TimeBudget           int        `json:"time_budget"`
	HardGapList          []int      `json:"hard_gap_list"`
	RemainingGapDistance float64    `json:"remaining_gap_distance"`
	GoalReached          bool       `json:"goal_reached"`
	Gaps                 []Gap      `json:"gaps"`
}

// Recommendation is one scored template. Score is nil when ineligible.
type Recommendation struct {
	TemplateIdx  int      `json:"template_idx"`
	TemplateName string   `json:"template_name"`
	Score        *float64 `json:"score"`
	Flags        struct {
		Exhausted  bool `json:"exhausted"`
		TooLong    bool `json:"too_long"`
		NoProgress bool `json:"no_progress"`
	} `json:"flags"`
	OkeyToTake bool `json:"okey_to_take"`
	IsBest     bool `json:"is_best"`
}

// Template represents one catalog entry.
type Template struct {
	Idx           int       `json:"idx"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
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
}

// AutoCompleteResult is the outcome of an auto-complete run.
type AutoCompleteResult struct {
	InsertedCount int      `json:"inserted_count"`
	GoalReached   bool     `json:"goal_reached"`
	Snapshot      Snapshot `json:"snapshot"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// CreateSessionOptions are optional session parameters. Zero values fall back
// to the server's configured defaults.
type CreateSessionOptions struct {
	ID          string
	Start       string
	Goal        string
	TimeBudget  int
	LibraryYAML string
}

// InsertOptions are optional placement parameters.
type InsertOptions struct {
	Duration int
	Plane    string
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login mints a development bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, actorID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", map[string]any{"actor_id": actorID}, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// CreateSession creates a session.
func (c *Client) CreateSession(ctx context.Context, name string, opts CreateSessionOptions) (Session, error) {
	body := map[string]any{"name": name}
	if opts.ID != "" {
		body["id"] = opts.ID
	}
	if opts.Start != "" {
		body["start"] = opts.Start
	}
	if opts.Goal != "" {
		body["goal"] = opts.Goal
	}
	if opts.TimeBudget > 0 {
		body["time_budget"] = opts.TimeBudget
	}
	if opts.LibraryYAML != "" {
		body["library_yaml"] = opts.LibraryYAML
	}
	var resp Session
	err := c.do(ctx, http.MethodPost, "v0/sessions", body, &resp)
	return resp, err
}

// ListSessions returns every session, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var resp []Session
	err := c.do(ctx, http.MethodGet, "v0/sessions", nil, &resp)
	return resp, err
}

// GetSession fetches a session by id.
func (c *Client) GetSession(ctx context.Context, id string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodGet, c.sessionPath(id, ""), nil, &resp)
	return resp, err
}

// RenameSession updates a session name.
func (c *Client) RenameSession(ctx context.Context, id, name string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPatch, c.sessionPath(id, ""), map[string]any{"name": name}, &resp)
	return resp, err
}

// DeleteSession removes a session and its timeline.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.sessionPath(id, ""), nil, nil)
}

// State returns the current timeline snapshot.
func (c *Client) State(ctx context.Context, sessionID string) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodGet, c.sessionPath(sessionID, "state"), nil, &resp)
	return resp, err
}

// Insert places an activity on the timeline.
func (c *Client) Insert(ctx context.Context, sessionID string, templateIdx, position int, opts InsertOptions) (Snapshot, error) {
	body := map[string]any{
		"template_idx": templateIdx,
		"position":     position,
	}
	if opts.Duration > 0 {
		body["duration"] = opts.Duration
	}
	if opts.Plane != "" {
		body["plane"] = opts.Plane
	}
	var resp Snapshot
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "activities"), body, &resp)
	return resp, err
}

// Remove deletes the activity at position.
func (c *Client) Remove(ctx context.Context, sessionID string, position int) (Snapshot, error) {
	var resp Snapshot
	endpoint := c.sessionPath(sessionID, fmt.Sprintf("activities/%d", position))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp, err
}

// ChangePlane switches the social plane of the activity at position.
func (c *Client) ChangePlane(ctx context.Context, sessionID string, position int, plane string) (Snapshot, error) {
	var resp Snapshot
	endpoint := c.sessionPath(sessionID, fmt.Sprintf("activities/%d/plane", position))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"plane": plane}, &resp)
	return resp, err
}

// Exchange swaps the activities at two positions.
func (c *Client) Exchange(ctx context.Context, sessionID string, posA, posB int) (Snapshot, error) {
	var resp Snapshot
	body := map[string]any{"pos_a": posA, "pos_b": posB}
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "exchange"), body, &resp)
	return resp, err
}

// Reset removes every activity from the timeline.
func (c *Client) Reset(ctx context.Context, sessionID string) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "reset"), nil, &resp)
	return resp, err
}

// Gaps returns the boundary walk of the timeline.
func (c *Client) Gaps(ctx context.Context, sessionID string) ([]Gap, error) {
	var resp []Gap
	err := c.do(ctx, http.MethodGet, c.sessionPath(sessionID, "gaps"), nil, &resp)
	return resp, err
}

// Recommend scores every template against the boundary at position.
func (c *Client) Recommend(ctx context.Context, sessionID string, position int) ([]Recommendation, error) {
	var resp []Recommendation
	endpoint := fmt.Sprintf("%s?position=%d", c.sessionPath(sessionID, "recommendations"), position)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AutoAdd inserts the best eligible activity at the hardest gap.
func (c *Client) AutoAdd(ctx context.Context, sessionID string) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "auto-add"), nil, &resp)
	return resp, err
}

// AutoComplete fills the timeline greedily until the goal is reached or no
// activity fits.
func (c *Client) AutoComplete(ctx context.Context, sessionID string) (AutoCompleteResult, error) {
	var resp AutoCompleteResult
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "auto-complete"), nil, &resp)
	return resp, err
}

// Templates lists the session's activity catalog.
func (c *Client) Templates(ctx context.Context, sessionID string) ([]Template, error) {
	var resp []Template
	err := c.do(ctx, http.MethodGet, c.sessionPath(sessionID, "templates"), nil, &resp)
	return resp, err
}

// TemplateSpec describes one template for AddTemplate. Vectors use the
// string form "(a;b)".
type TemplateSpec struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PCond         string `json:"pcond"`
	EffectMin     string `json:"effect_min,omitempty"`
	EffectMax     string `json:"effect_max"`
	MinTime       int    `json:"min_time,omitempty"`
	MaxTime       int    `json:"max_time,omitempty"`
	DefaultTime   int    `json:"default_time"`
	MaxRepetition int    `json:"max_repetition"`
	Plane         string `json:"plane"`
	Explanation   string `json:"explanation,omitempty"`
	Sources       string `json:"sources,omitempty"`
}

// AddTemplate appends a template to the session catalog and returns the new
// catalog.
func (c *Client) AddTemplate(ctx context.Context, sessionID string, spec TemplateSpec) ([]Template, error) {
	var resp []Template
	err := c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "templates"), spec, &resp)
	return resp, err
}

// ImportLibrary replaces the session catalog. Fails while the timeline holds
// activities.
func (c *Client) ImportLibrary(ctx context.Context, sessionID, yamlDoc string) error {
	return c.do(ctx, http.MethodPut, c.sessionPath(sessionID, "library"), map[string]any{"yaml": yamlDoc}, nil)
}

// ExportLibrary returns the session catalog as YAML.
func (c *Client) ExportLibrary(ctx context.Context, sessionID string) (string, error) {
	var resp struct {
		YAML string `json:"yaml"`
	}
	err := c.do(ctx, http.MethodGet, c.sessionPath(sessionID, "library"), nil, &resp)
	return resp.YAML, err
}

// Events returns recent audit entries, optionally filtered by session.
func (c *Client) Events(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	endpoint := "v0/events"
	params := url.Values{}
	if sessionID != "" {
		params.Set("session_id", sessionID)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) sessionPath(id, p string) string {
	base := "v0/sessions/" + url.PathEscape(id)
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
