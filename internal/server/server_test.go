package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/edwinlov3tt/approval-dashboard/internal/config"
	"github.com/edwinlov3tt/approval-dashboard/internal/db"
	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
	"github.com/edwinlov3tt/approval-dashboard/internal/engine"
	"github.com/edwinlov3tt/approval-dashboard/internal/migrate"
	"github.com/edwinlov3tt/approval-dashboard/internal/repo"
)

const testAPIKey = "apd_test_key"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("adv-1")
	cfg.Share.BaseURL = "https://review.example.com"
	e := engine.New(conn, cfg)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)
	if err := e.Repo.InsertAdvertiser(ctx, domain.Advertiser{
		ID: "adv-1", CompanyName: "Test Co", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed advertiser: %v", err)
	}
	if err := e.Repo.InsertAPIKey(ctx, domain.APIKey{
		ID:        uuid.New().String(),
		Email:     "ops@example.com",
		Name:      "Ops",
		KeyHash:   repo.HashAPIKey(testAPIKey),
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed api key: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: "test-secret"}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func keyHeader() map[string]string {
	return map[string]string{"X-Api-Key": testAPIKey}
}

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v: %s", err, string(data))
	}
	return env
}

// createAdAndRequest seeds a creative and opens a two-tier review over HTTP.
func createAdAndRequest(t *testing.T, srv *testServer) RequestResponse {
	t.Helper()
	client := srv.Client()
	adRes, adBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/ads", map[string]any{
		"content": map[string]any{"headline": "Summer Sale", "cta": map[string]any{"label": "Shop now"}},
	}, keyHeader())
	if adRes.StatusCode != http.StatusCreated {
		t.Fatalf("create ad: %d %s", adRes.StatusCode, string(adBody))
	}
	var ad AdResponse
	if err := json.Unmarshal(adBody, &ad); err != nil {
		t.Fatalf("unmarshal ad: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests", map[string]any{
		"ad_id": ad.ID,
		"participants": []map[string]any{
			{"email": "lead@example.com", "name": "Lead", "tier": 1},
			{"email": "vp@example.com", "name": "VP", "tier": 2, "is_final_approver": true},
		},
	}, keyHeader())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create request: %d %s", res.StatusCode, string(data))
	}
	var created RequestResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if len(created.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(created.Participants))
	}
	return created
}

func participantID(t *testing.T, q RequestResponse, email string) string {
	t.Helper()
	for _, p := range q.Participants {
		if p.Email == email {
			return p.ID
		}
	}
	t.Fatalf("no participant %s", email)
	return ""
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/requests", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	env := decodeError(t, data)
	if env.Success || env.Error.Code != "unauthorized" {
		t.Fatalf("unexpected envelope: %s", string(data))
	}
}

func TestDecisionLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	q := createAdAndRequest(t, srv)
	leadID := participantID(t, q, "lead@example.com")
	vpID := participantID(t, q, "vp@example.com")

	// tier 2 cannot decide before tier 1 resolves
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/decision", map[string]any{
		"participant_id": vpID,
		"decision":       "approved",
	}, keyHeader())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	env := decodeError(t, data)
	if env.Success || env.Error.Code != "not_your_turn" {
		t.Fatalf("expected not_your_turn, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/decision", map[string]any{
		"participant_id": leadID,
		"decision":       "approved",
	}, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tier 1 approve: %d %s", res.StatusCode, string(data))
	}
	var afterTier1 RequestResponse
	_ = json.Unmarshal(data, &afterTier1)
	if afterTier1.CurrentTier != 2 {
		t.Fatalf("expected advance to tier 2, got %d", afterTier1.CurrentTier)
	}

	// an immutable decision cannot be re-submitted
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/decision", map[string]any{
		"participant_id": leadID,
		"decision":       "rejected",
	}, keyHeader())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "decision_already_submitted" {
		t.Fatalf("expected decision_already_submitted, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/decision", map[string]any{
		"participant_id": vpID,
		"decision":       "approved",
	}, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("final approve: %d %s", res.StatusCode, string(data))
	}
	var final RequestResponse
	_ = json.Unmarshal(data, &final)
	if final.Status != "approved" {
		t.Fatalf("expected approved, got %s", final.Status)
	}

	// terminal requests refuse further decisions
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/decision", map[string]any{
		"participant_id": vpID,
		"decision":       "rejected",
	}, keyHeader())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on terminal, got %d %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", string(data))
	}
}

func TestLoginAndBearerAccess(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	q := createAdAndRequest(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email": "Lead@Example.com",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", res.StatusCode, string(data))
	}
	var login LoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if login.Token == "" || login.Email != "lead@example.com" {
		t.Fatalf("unexpected login response: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requests/"+q.ID, nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get with bearer: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("whoami: %d %s", res.StatusCode, string(data))
	}
	var me MeResponse
	_ = json.Unmarshal(data, &me)
	if me.Email != "lead@example.com" || me.Source != "jwt" {
		t.Fatalf("unexpected whoami: %s", string(data))
	}

	// unknown reviewer cannot log in
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"email": "stranger@example.com",
	}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown email, got %d %s", res.StatusCode, string(data))
	}
}

func TestShareLinkIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	q := createAdAndRequest(t, srv)
	if q.TrackingID == "" {
		t.Fatalf("expected tracking id on created request")
	}
	if q.ShareURL != "https://review.example.com/share/"+q.TrackingID {
		t.Fatalf("unexpected share url: %s", q.ShareURL)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/share/"+q.TrackingID+"?email=lead@example.com", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("share open: %d %s", res.StatusCode, string(data))
	}
	var shared RequestResponse
	if err := json.Unmarshal(data, &shared); err != nil {
		t.Fatalf("unmarshal shared request: %v", err)
	}
	if shared.ID != q.ID {
		t.Fatalf("share returned wrong request: %s", shared.ID)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/share/"+uuid.New().String(), nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tracking id, got %d %s", res.StatusCode, string(data))
	}
}

func TestRevisionFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	q := createAdAndRequest(t, srv)
	leadID := participantID(t, q, "lead@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/revisions", map[string]any{
		"participant_id": leadID,
		"revisions": []map[string]any{
			{"element_path": "headline", "original_value": "Summer Sale", "revised_value": "Winter Sale"},
		},
	}, keyHeader())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit revisions: %d %s", res.StatusCode, string(data))
	}
	var revs []RevisionResponse
	if err := json.Unmarshal(data, &revs); err != nil || len(revs) != 1 {
		t.Fatalf("unmarshal revisions: %v %s", err, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/revisions/"+revs[0].ID+"/resolve", map[string]any{
		"action": "accept",
	}, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolve: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/resubmit", nil, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resubmit: %d %s", res.StatusCode, string(data))
	}
	var resubmitted RequestResponse
	_ = json.Unmarshal(data, &resubmitted)
	if resubmitted.Status != "in_review" || resubmitted.CurrentTier != 1 {
		t.Fatalf("expected in_review tier 1 after resubmit, got %s/%d", resubmitted.Status, resubmitted.CurrentTier)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requests/"+q.ID+"/activity", nil, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity: %d %s", res.StatusCode, string(data))
	}
	var events []ActivityResponse
	if err := json.Unmarshal(data, &events); err != nil || len(events) == 0 {
		t.Fatalf("unmarshal activity: %v %s", err, string(data))
	}
	if events[0].EventType != "request_resubmitted" {
		t.Fatalf("expected newest event first, got %s", events[0].EventType)
	}
}

func TestApproverRoster(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	createAdAndRequest(t, srv)

	// opening a review seeds the roster with its participants
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/approvers", nil, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list approvers: %d %s", res.StatusCode, string(data))
	}
	var roster []ApproverResponse
	if err := json.Unmarshal(data, &roster); err != nil {
		t.Fatalf("unmarshal roster: %v %s", err, string(data))
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 roster entries, got %d", len(roster))
	}
	if roster[0].Email != "vp@example.com" || !roster[0].IsFinalApprover {
		t.Fatalf("expected final approver first, got %+v", roster[0])
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/approvers", map[string]any{
		"email": "Legal@Example.com",
		"name":  "Legal Team",
	}, keyHeader())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add approver: %d %s", res.StatusCode, string(data))
	}
	var added ApproverResponse
	if err := json.Unmarshal(data, &added); err != nil {
		t.Fatalf("unmarshal added: %v %s", err, string(data))
	}
	if added.Email != "legal@example.com" || added.ID == "" {
		t.Fatalf("unexpected added approver: %+v", added)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/approvers", map[string]any{
		"email": "not-an-email",
	}, keyHeader())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad email, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/approvers/"+added.ID, nil, keyHeader())
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("remove approver: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/approvers/"+added.ID, nil, keyHeader())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 removing twice, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/approvers", nil, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list approvers: %d %s", res.StatusCode, string(data))
	}
	roster = nil
	if err := json.Unmarshal(data, &roster); err != nil || len(roster) != 2 {
		t.Fatalf("expected roster back to 2, got %v %s", err, string(data))
	}
}

func TestDashboardRecentActivity(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	q := createAdAndRequest(t, srv)
	leadID := participantID(t, q, "lead@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+q.ID+"/decision", map[string]any{
		"participant_id": leadID,
		"decision":       "approved",
	}, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decision: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/dashboard", nil, keyHeader())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: %d %s", res.StatusCode, string(data))
	}
	var dash DashboardResponse
	if err := json.Unmarshal(data, &dash); err != nil {
		t.Fatalf("unmarshal dashboard: %v %s", err, string(data))
	}
	if len(dash.RecentActivity) == 0 {
		t.Fatalf("expected a recent activity feed, got %s", string(data))
	}
	seen := map[string]bool{}
	for _, e := range dash.RecentActivity {
		seen[e.EventType] = true
	}
	if !seen["request_created"] || !seen["decision_submitted"] {
		t.Fatalf("feed missing lifecycle events: %s", string(data))
	}
}
