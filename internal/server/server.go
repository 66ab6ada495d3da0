package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/edwinlov3tt/approval-dashboard/internal/activity"
	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
	"github.com/edwinlov3tt/approval-dashboard/internal/engine"
	"github.com/edwinlov3tt/approval-dashboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_your_turn"`
	Message string         `json:"message" example:"participant is at tier 2 but the request is at tier 1"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope: {"success":false,"error":{...}}.
type apiError struct {
	status  int
	Success bool         `json:"success"`
	Body    apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the approval API.
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
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Approval Dashboard API", "0.1.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerRequests(group, cfg.Engine)
	registerShare(group, cfg.Engine)
	registerCampaigns(group, cfg.Engine)
	registerAds(group, cfg.Engine)
	registerProfile(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)

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

// handleError maps the engine's error taxonomy onto distinct wire codes so
// the review UI can tell each workflow failure apart.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var nyt engine.NotYourTurnError
	if errors.As(err, &nyt) {
		return newAPIError(http.StatusConflict, "not_your_turn", err.Error(), map[string]any{
			"participant_tier": nyt.ParticipantTier,
			"current_tier":     nyt.CurrentTier,
		})
	}
	var das engine.DecisionAlreadySubmittedError
	if errors.As(err, &das) {
		return newAPIError(http.StatusConflict, "decision_already_submitted", err.Error(), map[string]any{
			"participant_id": das.ParticipantID,
			"decision":       das.Status,
		})
	}
	var it engine.InvalidTransitionError
	if errors.As(err, &it) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"status": it.Status})
	}
	var exp engine.ExpiredRequestError
	if errors.As(err, &exp) {
		return newAPIError(http.StatusGone, "expired_request", err.Error(), map[string]any{"expires_at": exp.ExpiresAt})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "validation_error", err.Error(), map[string]any{"field": ve.Field})
	}
	if errors.Is(err, engine.ErrVersionConflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusGone:
		return "expired_request"
	case http.StatusUnauthorized:
		return "unauthorized"
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

func registerAuth(api huma.API, e engine.Engine, auth AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in as a reviewer by email",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		email := strings.ToLower(strings.TrimSpace(input.Body.Email))
		if email == "" {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", "email is required", map[string]any{"field": "email"})
		}
		p, err := e.Repo.FindParticipantByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "not_found", "no review assignments for "+email, nil)
			}
			return nil, handleError(err)
		}
		token, err := issueToken(p.Email, p.Name, auth.JWTSecret, auth.TokenTTL, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, Email: p.Email, Name: p.Name}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Identify the authenticated caller",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse(caller)}, nil
	})
}

func shareURL(e engine.Engine, q domain.ApprovalRequest) string {
	if q.TrackingID == "" {
		return ""
	}
	return e.ShareLink(q)
}

func fullRequestResponse(ctx context.Context, e engine.Engine, q domain.ApprovalRequest) (RequestResponse, error) {
	resp := requestResponse(q, shareURL(e, q))
	parts, err := e.Repo.ListParticipants(ctx, q.ID)
	if err != nil {
		return resp, err
	}
	resp.Participants = mapParticipants(parts)
	revs, err := e.Repo.ListRevisions(ctx, q.ID)
	if err != nil {
		return resp, err
	}
	resp.Revisions = mapRevisions(revs)
	return resp, nil
}

func registerRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Open an approval request",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateRequestRequest `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CreateRequestOptions{
			AdID:          input.Body.AdID,
			PreviewURL:    input.Body.PreviewURL,
			ExpiresInDays: input.Body.ExpiresInDays,
			ActorEmail:    caller.Email,
			ActorName:     caller.Name,
		}
		for _, p := range input.Body.Participants {
			opts.Participants = append(opts.Participants, engine.ParticipantInput{
				Email:           p.Email,
				Name:            p.Name,
				Tier:            p.Tier,
				IsFinalApprover: p.IsFinalApprover,
			})
		}
		q, parts, err := e.CreateRequest(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		resp := requestResponse(q, shareURL(e, q))
		resp.Participants = mapParticipants(parts)
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requests",
		Method:      http.MethodGet,
		Path:        "/requests",
		Summary:     "List approval requests",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		AdID   string `query:"ad_id"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body []RequestResponse `json:"body"`
	}, error) {
		filters := repo.RequestFilters{Status: input.Status, AdID: input.AdID, Limit: input.Limit}
		if e.Config != nil {
			filters.AdvertiserID = e.Config.Advertiser.ID
		}
		items, err := e.Repo.ListRequests(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]RequestResponse, 0, len(items))
		for _, q := range items {
			out = append(out, requestResponse(q, shareURL(e, q)))
		}
		return &struct {
			Body []RequestResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request",
		Method:      http.MethodGet,
		Path:        "/requests/{id}",
		Summary:     "Get an approval request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		q, err := e.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp, err := fullRequestResponse(ctx, e, q)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-decision",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/decision",
		Summary:     "Submit an approve or reject verdict",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusGone},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body DecisionRequest `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		q, err := e.SubmitDecision(ctx, engine.DecisionOptions{
			RequestID:     input.ID,
			ParticipantID: input.Body.ParticipantID,
			Decision:      input.Body.Decision,
			Comment:       input.Body.Comment,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp, err := fullRequestResponse(ctx, e, q)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-revisions",
		Method:        http.MethodPost,
		Path:          "/requests/{id}/revisions",
		Summary:       "Submit a batch of revision suggestions",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusGone},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body SubmitRevisionsRequest `json:"body"`
	}) (*struct {
		Body []RevisionResponse `json:"body"`
	}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		opts := engine.RevisionBatchOptions{
			RequestID:     input.ID,
			ParticipantID: input.Body.ParticipantID,
		}
		for _, it := range input.Body.Revisions {
			opts.Items = append(opts.Items, engine.RevisionInput{
				ElementPath:   it.ElementPath,
				OriginalValue: it.OriginalValue,
				RevisedValue:  it.RevisedValue,
				Comment:       it.Comment,
			})
		}
		revs, err := e.SubmitRevisions(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []RevisionResponse `json:"body"`
		}{Body: mapRevisions(revs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-revision",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/revisions/{revision_id}/resolve",
		Summary:     "Accept or decline a revision suggestion",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID         string                 `path:"id"`
		RevisionID string                 `path:"revision_id"`
		Body       ResolveRevisionRequest `json:"body"`
	}) (*struct {
		Body RevisionResponse `json:"body"`
	}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Action != "accept" && input.Body.Action != "decline" {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", `action must be "accept" or "decline"`, map[string]any{"field": "action"})
		}
		s, err := e.ResolveRevision(ctx, input.ID, input.RevisionID, input.Body.Action == "accept", caller.Email, caller.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RevisionResponse `json:"body"`
		}{Body: revisionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resubmit-request",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/resubmit",
		Summary:     "Return a revised creative to review",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusGone},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.Resubmit(ctx, input.ID, caller.Email, caller.Name)
		if err != nil {
			return nil, handleError(err)
		}
		resp, err := fullRequestResponse(ctx, e, q)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-activity",
		Method:      http.MethodGet,
		Path:        "/requests/{id}/activity",
		Summary:     "Audit timeline for a request, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Limit int    `query:"limit" default:"100"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetRequest(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListActivity(ctx, input.ID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: mapActivity(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-view",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/view",
		Summary:     "Record that the caller viewed a request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RecordView(ctx, input.ID, caller.Email, caller.Name); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "append-activity",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/activity",
		Summary:     "Append a non-decision audit entry",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body AppendActivityRequest `json:"body"`
	}) (*struct{}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RecordActivity(ctx, input.ID, input.Body.EventType, caller.Email, caller.Name, activity.Metadata(input.Body.Metadata)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "issue-share-link",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/share",
		Summary:     "Issue the shareable review link for a request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ShareResponse `json:"body"`
	}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		parts, err := e.Repo.ListParticipants(ctx, q.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.RecordActivity(ctx, q.ID, "share_link_issued", caller.Email, caller.Name, activity.Metadata{
			"recipients": len(parts),
		}); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ShareResponse `json:"body"`
		}{Body: ShareResponse{ShareURL: shareURL(e, q), Recipients: len(parts)}}, nil
	})
}

func registerShare(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "open-share-link",
		Method:      http.MethodGet,
		Path:        "/share/{tracking_id}",
		Summary:     "Open a request via its share link",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TrackingID string `path:"tracking_id"`
		Email      string `query:"email"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		q, err := e.Repo.GetRequestByTrackingID(ctx, input.TrackingID)
		if err != nil {
			return nil, handleError(err)
		}
		// Re-read through the engine so lapsed windows show as expired.
		q, err = e.Get(ctx, q.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" {
			if err := e.RecordView(ctx, q.ID, email, ""); err != nil {
				return nil, handleError(err)
			}
		}
		resp, err := fullRequestResponse(ctx, e, q)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func advertiserID(e engine.Engine) (string, huma.StatusError) {
	if e.Config == nil || e.Config.Advertiser.ID == "" {
		return "", newAPIError(http.StatusInternalServerError, "internal_error", "advertiser not configured", nil)
	}
	return e.Config.Advertiser.ID, nil
}

func registerCampaigns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-campaign",
		Method:        http.MethodPost,
		Path:          "/campaigns",
		Summary:       "Create campaign",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CampaignRequest `json:"body"`
	}) (*struct {
		Body CampaignResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", "name is required", map[string]any{"field": "name"})
		}
		now := time.Now().UTC().Format(time.RFC3339)
		c := domain.Campaign{
			ID:           uuid.New().String(),
			AdvertiserID: advID,
			Name:         input.Body.Name,
			Status:       "waiting",
			StartDate:    input.Body.StartDate,
			EndDate:      input.Body.EndDate,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if input.Body.Description != nil {
			c.Description = *input.Body.Description
		}
		if input.Body.Status != nil && *input.Body.Status != "" {
			c.Status = *input.Body.Status
		}
		if err := e.Repo.InsertCampaign(ctx, c); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CampaignResponse `json:"body"`
		}{Body: campaignResponse(c, 0)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-campaigns",
		Method:      http.MethodGet,
		Path:        "/campaigns",
		Summary:     "List campaigns",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CampaignResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		items, err := e.Repo.ListCampaigns(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		counts, err := e.Repo.CountCampaignAds(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]CampaignResponse, 0, len(items))
		for _, c := range items {
			out = append(out, campaignResponse(c, counts[c.ID]))
		}
		return &struct {
			Body []CampaignResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-campaign",
		Method:      http.MethodGet,
		Path:        "/campaigns/{id}",
		Summary:     "Get campaign with its creatives",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			CampaignResponse
			Ads []AdResponse `json:"ads"`
		} `json:"body"`
	}, error) {
		c, err := e.Repo.GetCampaign(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		ads, err := e.Repo.ListCampaignAds(ctx, c.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				CampaignResponse
				Ads []AdResponse `json:"ads"`
			} `json:"body"`
		}{}
		resp.Body.CampaignResponse = campaignResponse(c, len(ads))
		resp.Body.Ads = mapAds(ads)
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-campaign",
		Method:      http.MethodPatch,
		Path:        "/campaigns/{id}",
		Summary:     "Update campaign",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body CampaignRequest `json:"body"`
	}) (*struct {
		Body CampaignResponse `json:"body"`
	}, error) {
		now := time.Now().UTC().Format(time.RFC3339)
		u := repo.CampaignUpdate{
			Description: input.Body.Description,
			Status:      input.Body.Status,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
		}
		if input.Body.Name != "" {
			u.Name = &input.Body.Name
		}
		if err := e.Repo.UpdateCampaign(ctx, input.ID, now, u); err != nil {
			return nil, handleError(err)
		}
		c, err := e.Repo.GetCampaign(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		ads, err := e.Repo.ListCampaignAds(ctx, c.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CampaignResponse `json:"body"`
		}{Body: campaignResponse(c, len(ads))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-campaign",
		Method:      http.MethodDelete,
		Path:        "/campaigns/{id}",
		Summary:     "Delete campaign",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteCampaign(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-ad",
		Method:      http.MethodPut,
		Path:        "/campaigns/{id}/ads/{ad_id}",
		Summary:     "Attach a creative to a campaign",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID           string `path:"id"`
		AdID         string `path:"ad_id"`
		DisplayOrder int    `query:"display_order" default:"0"`
	}) (*struct{}, error) {
		if _, err := e.Repo.GetCampaign(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		if _, err := e.Repo.GetAd(ctx, input.AdID); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.AttachAd(ctx, input.ID, input.AdID, input.DisplayOrder); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "detach-ad",
		Method:      http.MethodDelete,
		Path:        "/campaigns/{id}/ads/{ad_id}",
		Summary:     "Detach a creative from a campaign",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		AdID string `path:"ad_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DetachAd(ctx, input.ID, input.AdID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAds(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-ad",
		Method:        http.MethodPost,
		Path:          "/ads",
		Summary:       "Create creative",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Content map[string]any `json:"content"`
		} `json:"body"`
	}) (*struct {
		Body AdResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		if len(input.Body.Content) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", "content is required", map[string]any{"field": "content"})
		}
		content, err := json.Marshal(input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		a := domain.Ad{
			ID:           uuid.New().String(),
			AdvertiserID: advID,
			ShortID:      uuid.New().String()[:8],
			ContentJSON:  string(content),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := e.Repo.InsertAd(ctx, a); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdResponse `json:"body"`
		}{Body: adResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ads",
		Method:      http.MethodGet,
		Path:        "/ads",
		Summary:     "List creatives",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []AdResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		items, err := e.Repo.ListAds(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AdResponse `json:"body"`
		}{Body: mapAds(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ad",
		Method:      http.MethodGet,
		Path:        "/ads/{id}",
		Summary:     "Get creative",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AdResponse `json:"body"`
	}, error) {
		a, err := e.Repo.GetAd(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdResponse `json:"body"`
		}{Body: adResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-ad",
		Method:      http.MethodPatch,
		Path:        "/ads/{id}",
		Summary:     "Replace creative content",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Content map[string]any `json:"content"`
		} `json:"body"`
	}) (*struct {
		Body AdResponse `json:"body"`
	}, error) {
		if len(input.Body.Content) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", "content is required", map[string]any{"field": "content"})
		}
		content, err := json.Marshal(input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateAdContent(ctx, input.ID, string(content), now); err != nil {
			return nil, handleError(err)
		}
		a, err := e.Repo.GetAd(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdResponse `json:"body"`
		}{Body: adResponse(a)}, nil
	})
}

func registerProfile(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profile",
		Summary:     "Advertiser profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProfileResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		a, err := e.Repo.GetAdvertiser(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProfileResponse `json:"body"`
		}{Body: ProfileResponse{
			ID:              a.ID,
			CompanyName:     a.CompanyName,
			LogoURL:         a.LogoURL,
			Website:         a.Website,
			Category:        a.Category,
			CompanyOverview: a.CompanyOverview,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPatch,
		Path:        "/profile",
		Summary:     "Update advertiser profile",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body UpdateProfileRequest `json:"body"`
	}) (*struct {
		Body ProfileResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdateAdvertiser(ctx, advID, now, repo.AdvertiserUpdate{
			CompanyName:     input.Body.CompanyName,
			LogoURL:         input.Body.LogoURL,
			Website:         input.Body.Website,
			Category:        input.Body.Category,
			CompanyOverview: input.Body.CompanyOverview,
		}); err != nil {
			return nil, handleError(err)
		}
		a, err := e.Repo.GetAdvertiser(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProfileResponse `json:"body"`
		}{Body: ProfileResponse{
			ID:              a.ID,
			CompanyName:     a.CompanyName,
			LogoURL:         a.LogoURL,
			Website:         a.Website,
			Category:        a.Category,
			CompanyOverview: a.CompanyOverview,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-approvers",
		Method:      http.MethodGet,
		Path:        "/approvers",
		Summary:     "Reviewer roster",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ApproverResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		roster, err := e.Repo.ListApprovers(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ApproverResponse, 0, len(roster))
		for _, a := range roster {
			out = append(out, approverResponse(a))
		}
		return &struct {
			Body []ApproverResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-approver",
		Method:        http.MethodPost,
		Path:          "/approvers",
		Summary:       "Add a reviewer to the roster",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body AddApproverRequest `json:"body"`
	}) (*struct {
		Body ApproverResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		email := strings.ToLower(strings.TrimSpace(input.Body.Email))
		if !strings.Contains(email, "@") {
			return nil, handleError(engine.ValidationError{Field: "email", Msg: "must be a valid email address"})
		}
		a := domain.Approver{
			ID:              uuid.New().String(),
			AdvertiserID:    advID,
			Email:           email,
			Name:            strings.TrimSpace(input.Body.Name),
			IsFinalApprover: input.Body.IsFinalApprover,
			CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.UpsertApprover(ctx, a); err != nil {
			return nil, handleError(err)
		}
		roster, err := e.Repo.ListApprovers(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		for _, got := range roster {
			if got.Email == email {
				a = got
				break
			}
		}
		return &struct {
			Body ApproverResponse `json:"body"`
		}{Body: approverResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-approver",
		Method:      http.MethodDelete,
		Path:        "/approvers/{id}",
		Summary:     "Remove a reviewer from the roster",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		if err := e.Repo.DeleteApprover(ctx, advID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Review pipeline summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		advID, advErr := advertiserID(e)
		if advErr != nil {
			return nil, advErr
		}
		counts, err := e.Repo.CountRequestsByStatus(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		since := time.Now().UTC().AddDate(0, 0, -7).Format(time.RFC3339)
		approved, err := e.Repo.CountApprovedSince(ctx, advID, since)
		if err != nil {
			return nil, handleError(err)
		}
		campaigns, ads, err := e.Repo.CountAdvertiserInventory(ctx, advID)
		if err != nil {
			return nil, handleError(err)
		}
		recent, err := e.Repo.RecentActivity(ctx, advID, 20)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: DashboardResponse{
			StatusCounts:   counts,
			ApprovedLast7d: approved,
			Campaigns:      campaigns,
			Ads:            ads,
			RecentActivity: mapActivity(recent),
		}}, nil
	})
}
