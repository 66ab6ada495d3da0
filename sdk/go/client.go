package approvalsdk

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

// Client is a minimal approval API client.
type Client struct {
	BaseURL     string
	APIKey      string
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

// Participant is one reviewer on a request.
type Participant struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Tier            int    `json:"tier"`
	Status          string `json:"status"`
	IsFinalApprover bool   `json:"is_final_approver"`
}

// Request is the API approval request model.
type Request struct {
	ID           string          `json:"id"`
	AdID         string          `json:"ad_id"`
	Snapshot     json.RawMessage `json:"snapshot"`
	Status       string          `json:"status"`
	CurrentTier  int             `json:"current_tier"`
	TrackingID   string          `json:"tracking_id,omitempty"`
	ShareURL     string          `json:"share_url,omitempty"`
	ExpiresAt    *string         `json:"expires_at,omitempty"`
	Participants []Participant   `json:"participants,omitempty"`
	Revisions    []Revision      `json:"revisions,omitempty"`
}

// Revision is one suggested edit to a creative field.
type Revision struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	ElementPath   string `json:"element_path"`
	OriginalValue string `json:"original_value"`
	RevisedValue  string `json:"revised_value"`
	Comment       string `json:"comment,omitempty"`
	Status        string `json:"status"`
}

// Activity is one audit log entry.
type Activity struct {
	ID        int64          `json:"id"`
	EventType string         `json:"event_type"`
	UserEmail string         `json:"user_email"`
	UserName  string         `json:"user_name,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

// NewParticipant describes a reviewer for CreateRequest.
type NewParticipant struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Tier            int    `json:"tier"`
	IsFinalApprover bool   `json:"is_final_approver,omitempty"`
}

// NewRevision describes one suggestion for SubmitRevisions.
type NewRevision struct {
	ElementPath   string `json:"element_path"`
	OriginalValue string `json:"original_value,omitempty"`
	RevisedValue  string `json:"revised_value"`
	Comment       string `json:"comment,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges a reviewer email for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, email string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/auth/login", map[string]any{"email": email}, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// CreateRequest opens a review for a creative.
func (c *Client) CreateRequest(ctx context.Context, adID string, participants []NewParticipant) (Request, error) {
	body := map[string]any{
		"ad_id":        adID,
		"participants": participants,
	}
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests", body, &resp)
	return resp, err
}

// GetRequest fetches a request with its reviewers and revisions.
func (c *Client) GetRequest(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodGet, "v0/requests/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListRequests lists requests, optionally filtered by status.
func (c *Client) ListRequests(ctx context.Context, status string) ([]Request, error) {
	endpoint := "v0/requests"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Request
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SubmitDecision records an approve or reject verdict.
func (c *Client) SubmitDecision(ctx context.Context, requestID, participantID, decision, comment string) (Request, error) {
	body := map[string]any{
		"participant_id": participantID,
		"decision":       decision,
		"comment":        comment,
	}
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests/"+url.PathEscape(requestID)+"/decision", body, &resp)
	return resp, err
}

// SubmitRevisions records a batch of suggested edits.
func (c *Client) SubmitRevisions(ctx context.Context, requestID, participantID string, items []NewRevision) ([]Revision, error) {
	body := map[string]any{
		"participant_id": participantID,
		"revisions":      items,
	}
	var resp []Revision
	err := c.do(ctx, http.MethodPost, "v0/requests/"+url.PathEscape(requestID)+"/revisions", body, &resp)
	return resp, err
}

// ResolveRevision accepts or declines one suggestion.
func (c *Client) ResolveRevision(ctx context.Context, requestID, revisionID, action string) (Revision, error) {
	var resp Revision
	endpoint := fmt.Sprintf("v0/requests/%s/revisions/%s/resolve", url.PathEscape(requestID), url.PathEscape(revisionID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"action": action}, &resp)
	return resp, err
}

// Resubmit returns a revised creative to review.
func (c *Client) Resubmit(ctx context.Context, requestID string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests/"+url.PathEscape(requestID)+"/resubmit", struct{}{}, &resp)
	return resp, err
}

// Activity returns the audit timeline for a request, newest first.
func (c *Client) Activity(ctx context.Context, requestID string, limit int) ([]Activity, error) {
	endpoint := "v0/requests/" + url.PathEscape(requestID) + "/activity"
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// OpenShare resolves a share-link tracking token to its request.
func (c *Client) OpenShare(ctx context.Context, trackingID, email string) (Request, error) {
	endpoint := "v0/share/" + url.PathEscape(trackingID)
	if email != "" {
		endpoint += "?email=" + url.QueryEscape(email)
	}
	var resp Request
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
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
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
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
