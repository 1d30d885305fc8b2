package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"lessonline/internal/domain"
	"lessonline/internal/engine"
	"lessonline/internal/graph"
	"lessonline/internal/library"
	"lessonline/internal/recommend"
	"lessonline/internal/repo"
	"lessonline/internal/vector"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"position 5 out of range [0,2]"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Lessonline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	if cfg.Auth.AllowAnonymousActor {
		cfg.Auth.logger().Printf("WARNING: anonymous actor access enabled; all unauthenticated requests run as \"local\"")
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Lessonline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerPlanes(group)
	registerSessions(group, cfg.Engine)
	registerTimeline(group, cfg.Engine)
	registerRecommendations(group, cfg.Engine)
	registerLibrary(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve graph.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	var ide vector.InvalidDurationError
	if errors.As(err, &ide) {
		return newAPIError(http.StatusBadRequest, "invalid_duration", err.Error(), map[string]any{
			"min_time": ide.MinT,
			"max_time": ide.MaxT,
		})
	}
	if errors.Is(err, recommend.ErrNoEligibleActivity) {
		return newAPIError(http.StatusUnprocessableEntity, "no_eligible_activity", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already exists"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "out of range") || strings.Contains(lowered, "unknown plane") ||
		strings.Contains(lowered, "reset first") || strings.Contains(lowered, "mismatch") ||
		strings.Contains(lowered, "must be"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerPlanes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-planes",
		Method:      http.MethodGet,
		Path:        "/planes",
		Summary:     "List organizational planes",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []PlaneResponse `json:"body"`
	}, error) {
		out := make([]PlaneResponse, 0, library.PlaneCount)
		for p := 0; p < library.PlaneCount; p++ {
			out = append(out, PlaneResponse{
				Plane:       p,
				Name:        library.PlaneName(p),
				Description: library.PlaneDescription(p),
			})
		}
		return &struct {
			Body []PlaneResponse `json:"body"`
		}{Body: out}, nil
	})
}

type sessionPath struct {
	SessionID string `path:"session_id"`
}

func registerSessions(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Create session",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateSessionRequest `json:"body"`
	}) (*struct {
		Body domain.Session `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.SessionCreateOptions{
			Name:    input.Body.Name,
			ActorID: actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.Start != nil {
			opts.Start = *input.Body.Start
		}
		if input.Body.Goal != nil {
			opts.Goal = *input.Body.Goal
		}
		if input.Body.TimeBudget != nil {
			opts.TimeBudget = *input.Body.TimeBudget
		}
		if input.Body.LibraryYAML != nil {
			opts.LibraryYAML = *input.Body.LibraryYAML
		}
		s, err := e.CreateSession(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Session `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List sessions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Session `json:"body"`
	}, error) {
		items, err := e.ListSessions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Session `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}",
		Summary:     "Get session",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body domain.Session `json:"body"`
	}, error) {
		s, err := e.GetSession(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Session `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-session",
		Method:      http.MethodPatch,
		Path:        "/sessions/{session_id}",
		Summary:     "Rename session",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string               `path:"session_id"`
		Body      RenameSessionRequest `json:"body"`
	}) (*struct {
		Body domain.Session `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.RenameSession(ctx, input.SessionID, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Session `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-session",
		Method:        http.MethodDelete,
		Path:          "/sessions/{session_id}",
		Summary:       "Delete session",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteSession(ctx, input.SessionID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/state",
		Summary:     "Timeline snapshot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body domain.GraphSnapshot `json:"body"`
	}, error) {
		snap, err := e.State(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.GraphSnapshot `json:"body"`
		}{Body: snap}, nil
	})
}

func registerTimeline(api huma.API, e *engine.Engine) {
	snapOut := func(snap domain.GraphSnapshot) *struct {
		Body domain.GraphSnapshot `json:"body"`
	} {
		return &struct {
			Body domain.GraphSnapshot `json:"body"`
		}{Body: snap}
	}

	huma.Register(api, huma.Operation{
		OperationID:   "insert-activity",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/activities",
		Summary:       "Insert activity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string                `path:"session_id"`
		Body      InsertActivityRequest `json:"body"`
	}) (*struct {
		Body domain.GraphSnapshot `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.InsertOptions{
			SessionID:   input.SessionID,
			TemplateIdx: input.Body.TemplateIdx,
			Position:    input.Body.Position,
			Duration:    input.Body.Duration,
			ActorID:     actorID,
		}
		if input.Body.Plane != nil {
			p, err := library.ParsePlane(*input.Body.Plane)
			if err != nil {
				return nil, handleError(err)
			}
			opts.Plane = &p
		}
		snap, err := e.Insert(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return snapOut(snap), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-activity",
		Method:      http.MethodDelete,
		Path:        "/sessions/{session_id}/activities/{position}",
		Summary:     "Remove activity",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
		Position  int    `path:"position"`
	}) (*struct {
		Body domain.GraphSnapshot `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		snap, err := e.Remove(ctx, input.SessionID, input.Position, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return snapOut(snap), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-plane",
		Method:      http.MethodPatch,
		Path:        "/sessions/{session_id}/activities/{position}/plane",
		Summary:     "Change activity plane",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string             `path:"session_id"`
		Position  int                `path:"position"`
		Body      ChangePlaneRequest `json:"body"`
	}) (*struct {
		Body domain.GraphSnapshot `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		plane, err := library.ParsePlane(input.Body.Plane)
		if err != nil {
			return nil, handleError(err)
		}
		snap, err := e.ChangePlane(ctx, input.SessionID, input.Position, plane, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return snapOut(snap), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "exchange-activities",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/exchange",
		Summary:     "Swap two activities",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string          `path:"session_id"`
		Body      ExchangeRequest `json:"body"`
	}) (*struct {
		Body domain.GraphSnapshot `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		snap, err := e.Exchange(ctx, input.SessionID, input.Body.PosA, input.Body.PosB, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return snapOut(snap), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-timeline",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/reset",
		Summary:     "Clear the timeline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body domain.GraphSnapshot `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		snap, err := e.Reset(ctx, input.SessionID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return snapOut(snap), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-gaps",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/gaps",
		Summary:     "Boundary walk with gap distances",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body []domain.GapInfo `json:"body"`
	}, error) {
		gaps, err := e.Gaps(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.GapInfo `json:"body"`
		}{Body: gaps}, nil
	})
}

func registerRecommendations(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "recommend",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/recommendations",
		Summary:     "Score templates against a gap boundary",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
		Position  int    `query:"position"`
	}) (*struct {
		Body []domain.Recommendation `json:"body"`
	}, error) {
		recs, err := e.Recommend(ctx, input.SessionID, input.Position)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Recommendation `json:"body"`
		}{Body: recs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "auto-add",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/auto-add",
		Summary:       "Insert the best activity at the hardest gap",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body domain.GraphSnapshot `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		snap, err := e.AutoAdd(ctx, input.SessionID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.GraphSnapshot `json:"body"`
		}{Body: snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auto-complete",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/auto-complete",
		Summary:     "Fill gaps greedily until the goal is reached",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body struct {
			AutoCompleteResponse
			Snapshot domain.GraphSnapshot `json:"snapshot"`
		} `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		out, err := e.AutoComplete(ctx, input.SessionID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				AutoCompleteResponse
				Snapshot domain.GraphSnapshot `json:"snapshot"`
			} `json:"body"`
		}{}
		resp.Body.InsertedCount = out.InsertedCount
		resp.Body.GoalReached = out.GoalReached
		resp.Body.Snapshot = out.Snapshot
		return resp, nil
	})
}

func registerLibrary(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/templates",
		Summary:     "List activity templates",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body []domain.TemplateView `json:"body"`
	}, error) {
		views, err := e.Templates(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TemplateView `json:"body"`
		}{Body: views}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-template",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/templates",
		Summary:       "Append a template to the session catalog",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		SessionID string             `path:"session_id"`
		Body      AddTemplateRequest `json:"body"`
	}) (*struct {
		Body []domain.TemplateView `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		spec := library.TemplateSpec{
			Name:          input.Body.Name,
			Description:   input.Body.Description,
			PCond:         input.Body.PCond,
			Effect:        library.EffectSpec{Min: input.Body.EffectMin, Max: input.Body.EffectMax},
			Time:          library.TimeSpec{Min: input.Body.MinTime, Max: input.Body.MaxTime, Default: input.Body.DefaultTime},
			MaxRepetition: input.Body.MaxRepetition,
			Plane:         input.Body.Plane,
			Explanation:   input.Body.Explanation,
			Sources:       input.Body.Sources,
		}
		views, err := e.AddTemplate(ctx, input.SessionID, spec, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TemplateView `json:"body"`
		}{Body: views}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-library",
		Method:      http.MethodPut,
		Path:        "/sessions/{session_id}/library",
		Summary:     "Replace the session catalog",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string               `path:"session_id"`
		Body      ImportLibraryRequest `json:"body"`
	}) (*struct {
		Body LibraryResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.GetSession(ctx, input.SessionID); err != nil {
			return nil, handleError(err)
		}
		if err := e.ImportLibrary(ctx, input.SessionID, input.Body.YAML, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LibraryResponse `json:"body"`
		}{Body: LibraryResponse{YAML: input.Body.YAML}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-library",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/library",
		Summary:     "Export the session catalog",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body LibraryResponse `json:"body"`
	}, error) {
		if _, err := e.GetSession(ctx, input.SessionID); err != nil {
			return nil, handleError(err)
		}
		data, err := e.ExportLibrary(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LibraryResponse `json:"body"`
		}{Body: LibraryResponse{YAML: string(data)}}, nil
	})
}

func registerEvents(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events, newest first",
	}, func(ctx context.Context, input *struct {
		SessionID string `query:"session_id"`
		Limit     int    `query:"limit"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		evts, err := e.ListEvents(ctx, input.SessionID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: evts}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}
