package server

import (
	"encoding/json"

	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
)

type LoginRequest struct {
	Email string `json:"email" format:"email"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type MeResponse struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source"`
}

type ShareResponse struct {
	ShareURL   string `json:"share_url"`
	Recipients int    `json:"recipients"`
}

type AppendActivityRequest struct {
	EventType string         `json:"event_type"`
	Metadata  map[string]any `json:"metadata,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type ParticipantRequest struct {
	Email           string `json:"email" format:"email"`
	Name            string `json:"name"`
	Tier            int    `json:"tier" minimum:"1"`
	IsFinalApprover bool   `json:"is_final_approver,omitempty"`
}

type CreateRequestRequest struct {
	AdID          string               `json:"ad_id"`
	Participants  []ParticipantRequest `json:"participants"`
	PreviewURL    string               `json:"preview_url,omitempty"`
	ExpiresInDays int                  `json:"expires_in_days,omitempty" minimum:"0"`
}

type ParticipantResponse struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	Tier            int     `json:"tier"`
	Status          string  `json:"status"`
	IsFinalApprover bool    `json:"is_final_approver"`
	DecidedAt       *string `json:"decided_at,omitempty"`
}

type RequestResponse struct {
	ID          string          `json:"id"`
	AdID        string          `json:"ad_id"`
	Snapshot    json.RawMessage `json:"snapshot"`
	Status      string          `json:"status"`
	CurrentTier int             `json:"current_tier"`
	TrackingID  string          `json:"tracking_id,omitempty"`
	PreviewURL  string          `json:"preview_url,omitempty"`
	ShareURL    string          `json:"share_url,omitempty"`
	ExpiresAt   *string         `json:"expires_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`

	Participants []ParticipantResponse `json:"participants,omitempty"`
	Revisions    []RevisionResponse    `json:"revisions,omitempty"`
}

type DecisionRequest struct {
	ParticipantID string `json:"participant_id"`
	Decision      string `json:"decision" enum:"approved,rejected"`
	Comment       string `json:"comment,omitempty"`
}

type RevisionItemRequest struct {
	ElementPath   string `json:"element_path"`
	OriginalValue string `json:"original_value,omitempty"`
	RevisedValue  string `json:"revised_value"`
	Comment       string `json:"comment,omitempty"`
}

type SubmitRevisionsRequest struct {
	ParticipantID string                `json:"participant_id"`
	Revisions     []RevisionItemRequest `json:"revisions"`
}

type ResolveRevisionRequest struct {
	Action string `json:"action" enum:"accept,decline"`
}

type RevisionResponse struct {
	ID            string  `json:"id"`
	ParticipantID string  `json:"participant_id"`
	ElementPath   string  `json:"element_path"`
	OriginalValue string  `json:"original_value"`
	RevisedValue  string  `json:"revised_value"`
	Comment       string  `json:"comment,omitempty"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	ResolvedAt    *string `json:"resolved_at,omitempty"`
}

type ActivityResponse struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	UserEmail string          `json:"user_email"`
	UserName  string          `json:"user_name,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

type CampaignRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
}

type CampaignResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	AdCount     int     `json:"ad_count"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type AdResponse struct {
	ID        string          `json:"id"`
	ShortID   string          `json:"short_id"`
	Content   json.RawMessage `json:"content"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type ProfileResponse struct {
	ID              string `json:"id"`
	CompanyName     string `json:"company_name"`
	LogoURL         string `json:"logo_url,omitempty"`
	Website         string `json:"website,omitempty"`
	Category        string `json:"category,omitempty"`
	CompanyOverview string `json:"company_overview,omitempty"`
}

type UpdateProfileRequest struct {
	CompanyName     *string `json:"company_name,omitempty"`
	LogoURL         *string `json:"logo_url,omitempty"`
	Website         *string `json:"website,omitempty"`
	Category        *string `json:"category,omitempty"`
	CompanyOverview *string `json:"company_overview,omitempty"`
}

type ApproverResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	IsFinalApprover bool   `json:"is_final_approver"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

type AddApproverRequest struct {
	Email           string `json:"email" format:"email"`
	Name            string `json:"name,omitempty"`
	IsFinalApprover bool   `json:"is_final_approver,omitempty"`
}

type DashboardResponse struct {
	StatusCounts   map[string]int     `json:"status_counts"`
	ApprovedLast7d int                `json:"approved_last_7d"`
	Campaigns      int                `json:"campaigns"`
	Ads            int                `json:"ads"`
	RecentActivity []ActivityResponse `json:"recent_activity"`
}

func rawJSON(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage([]byte("{}"))
	}
	return json.RawMessage([]byte(s))
}

func participantResponse(p domain.Participant) ParticipantResponse {
	return ParticipantResponse{
		ID:              p.ID,
		Email:           p.Email,
		Name:            p.Name,
		Tier:            p.Tier,
		Status:          p.Status,
		IsFinalApprover: p.IsFinalApprover,
		DecidedAt:       p.DecidedAt,
	}
}

func mapParticipants(in []domain.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(in))
	for _, p := range in {
		out = append(out, participantResponse(p))
	}
	return out
}

func revisionResponse(s domain.RevisionSuggestion) RevisionResponse {
	return RevisionResponse{
		ID:            s.ID,
		ParticipantID: s.ParticipantID,
		ElementPath:   s.ElementPath,
		OriginalValue: s.OriginalValue,
		RevisedValue:  s.RevisedValue,
		Comment:       s.Comment,
		Status:        s.Status,
		CreatedAt:     s.CreatedAt,
		ResolvedAt:    s.ResolvedAt,
	}
}

func mapRevisions(in []domain.RevisionSuggestion) []RevisionResponse {
	out := make([]RevisionResponse, 0, len(in))
	for _, s := range in {
		out = append(out, revisionResponse(s))
	}
	return out
}

func requestResponse(q domain.ApprovalRequest, shareURL string) RequestResponse {
	return RequestResponse{
		ID:          q.ID,
		AdID:        q.AdID,
		Snapshot:    rawJSON(q.SnapshotJSON),
		Status:      q.Status,
		CurrentTier: q.CurrentTier,
		TrackingID:  q.TrackingID,
		PreviewURL:  q.PreviewURL,
		ShareURL:    shareURL,
		ExpiresAt:   q.ExpiresAt,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
}

func mapActivity(in []domain.ActivityEvent) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(in))
	for _, e := range in {
		out = append(out, ActivityResponse{
			ID:        e.ID,
			EventType: e.EventType,
			UserEmail: e.UserEmail,
			UserName:  e.UserName,
			Metadata:  rawJSON(e.MetadataJSON),
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func approverResponse(a domain.Approver) ApproverResponse {
	return ApproverResponse{
		ID:              a.ID,
		Email:           a.Email,
		Name:            a.Name,
		IsFinalApprover: a.IsFinalApprover,
		CreatedAt:       a.CreatedAt,
	}
}

func campaignResponse(c domain.Campaign, adCount int) CampaignResponse {
	return CampaignResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Status:      c.Status,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		AdCount:     adCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func adResponse(a domain.Ad) AdResponse {
	return AdResponse{
		ID:        a.ID,
		ShortID:   a.ShortID,
		Content:   rawJSON(a.ContentJSON),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func mapAds(in []domain.Ad) []AdResponse {
	out := make([]AdResponse, 0, len(in))
	for _, a := range in {
		out = append(out, adResponse(a))
	}
	return out
}
