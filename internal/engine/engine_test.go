package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edwinlov3tt/approval-dashboard/internal/config"
	"github.com/edwinlov3tt/approval-dashboard/internal/db"
	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
	"github.com/edwinlov3tt/approval-dashboard/internal/engine"
	"github.com/edwinlov3tt/approval-dashboard/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Clock  *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("adv-1")
	cfg.Review.DefaultExpiryDays = 14
	eng := engine.New(conn, cfg)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return now }
	ctx := context.Background()
	nowStr := now.Format(time.RFC3339)
	if err := eng.Repo.InsertAdvertiser(ctx, domain.Advertiser{
		ID: "adv-1", CompanyName: "Test Co", CreatedAt: nowStr, UpdatedAt: nowStr,
	}); err != nil {
		t.Fatalf("seed advertiser: %v", err)
	}
	if err := eng.Repo.InsertAd(ctx, domain.Ad{
		ID:           "ad-1",
		AdvertiserID: "adv-1",
		ShortID:      "ad1",
		ContentJSON:  `{"headline":"Summer Sale","cta":{"label":"Shop now"}}`,
		CreatedAt:    nowStr,
		UpdatedAt:    nowStr,
	}); err != nil {
		t.Fatalf("seed ad: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Clock: &now}
}

func twoTierRequest(t *testing.T, env testEnv, expiresInDays int) (domain.ApprovalRequest, []domain.Participant) {
	t.Helper()
	q, parts, err := env.Engine.CreateRequest(env.Ctx, engine.CreateRequestOptions{
		AdID: "ad-1",
		Participants: []engine.ParticipantInput{
			{Email: "lead@example.com", Name: "Lead", Tier: 1},
			{Email: "manager@example.com", Name: "Manager", Tier: 1},
			{Email: "vp@example.com", Name: "VP", Tier: 2, IsFinalApprover: true},
		},
		ExpiresInDays: expiresInDays,
		ActorEmail:    "owner@example.com",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return q, parts
}

func byEmail(t *testing.T, parts []domain.Participant, email string) domain.Participant {
	t.Helper()
	for _, p := range parts {
		if p.Email == email {
			return p
		}
	}
	t.Fatalf("no participant %s", email)
	return domain.Participant{}
}

func TestCreateRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name  string
		parts []engine.ParticipantInput
	}{
		{"no participants", nil},
		{"bad email", []engine.ParticipantInput{{Email: "not-an-email", Tier: 1}}},
		{"duplicate email", []engine.ParticipantInput{
			{Email: "a@example.com", Tier: 1},
			{Email: "A@Example.com", Tier: 1},
		}},
		{"tier below one", []engine.ParticipantInput{{Email: "a@example.com", Tier: 0}}},
	}
	for _, tc := range cases {
		_, _, err := env.Engine.CreateRequest(env.Ctx, engine.CreateRequestOptions{AdID: "ad-1", Participants: tc.parts})
		var ve engine.ValidationError
		if err == nil || !errors.As(err, &ve) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
	// unknown ad
	_, _, err := env.Engine.CreateRequest(env.Ctx, engine.CreateRequestOptions{
		AdID:         "nope",
		Participants: []engine.ParticipantInput{{Email: "a@example.com", Tier: 1}},
	})
	if err == nil || !engine.IsNotFound(err) {
		t.Fatalf("expected not found for unknown ad, got %v", err)
	}
}

func TestTierAdvanceAndApprove(t *testing.T) {
	env := newTestEnv(t)
	q, parts := twoTierRequest(t, env, 0)
	if q.Status != domain.RequestPending || q.CurrentTier != 1 {
		t.Fatalf("new request should be pending at tier 1, got %s/%d", q.Status, q.CurrentTier)
	}
	if q.ExpiresAt == nil {
		t.Fatalf("expected default expiry window")
	}

	lead := byEmail(t, parts, "lead@example.com")
	q2, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: lead.ID, Decision: engine.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("first approval: %v", err)
	}
	if q2.Status != domain.RequestInReview || q2.CurrentTier != 1 {
		t.Fatalf("after one of two tier-1 approvals expected in_review tier 1, got %s/%d", q2.Status, q2.CurrentTier)
	}

	manager := byEmail(t, parts, "manager@example.com")
	q3, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: manager.ID, Decision: engine.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("second approval: %v", err)
	}
	if q3.CurrentTier != 2 {
		t.Fatalf("unanimous tier 1 should advance to tier 2, got tier %d", q3.CurrentTier)
	}

	vp := byEmail(t, parts, "vp@example.com")
	q4, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: vp.ID, Decision: engine.DecisionApproved, Comment: "ship it",
	})
	if err != nil {
		t.Fatalf("final approval: %v", err)
	}
	if q4.Status != domain.RequestApproved {
		t.Fatalf("expected approved, got %s", q4.Status)
	}

	events, err := env.Engine.Repo.ListActivity(env.Ctx, q.ID, 50)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	want := map[string]int{"request_created": 0, "tier_advanced": 0, "request_approved": 0, "decision_submitted": 0}
	for _, e := range events {
		if _, ok := want[e.EventType]; ok {
			want[e.EventType]++
		}
	}
	if want["request_created"] != 1 || want["tier_advanced"] != 1 || want["request_approved"] != 1 || want["decision_submitted"] != 3 {
		t.Fatalf("unexpected event counts: %v", want)
	}
	// newest first
	if events[0].EventType != "request_approved" {
		t.Fatalf("expected request_approved first, got %s", events[0].EventType)
	}
}

func TestSparseTiersAdvance(t *testing.T) {
	env := newTestEnv(t)
	q, parts, err := env.Engine.CreateRequest(env.Ctx, engine.CreateRequestOptions{
		AdID: "ad-1",
		Participants: []engine.ParticipantInput{
			{Email: "a@example.com", Tier: 1},
			{Email: "b@example.com", Tier: 5, IsFinalApprover: true},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	a := byEmail(t, parts, "a@example.com")
	q2, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: a.ID, Decision: engine.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("tier 1 approve: %v", err)
	}
	if q2.CurrentTier != 5 {
		t.Fatalf("advance should skip empty tiers, got tier %d", q2.CurrentTier)
	}
	b := byEmail(t, parts, "b@example.com")
	q3, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: b.ID, Decision: engine.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("tier 5 approve: %v", err)
	}
	if q3.Status != domain.RequestApproved {
		t.Fatalf("expected approved, got %s", q3.Status)
	}
}

func TestRejectEndsReview(t *testing.T) {
	env := newTestEnv(t)
	q, parts := twoTierRequest(t, env, 0)
	lead := byEmail(t, parts, "lead@example.com")
	q2, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: lead.ID, Decision: engine.DecisionRejected, Comment: "off-brand",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if q2.Status != domain.RequestRejected {
		t.Fatalf("expected rejected, got %s", q2.Status)
	}
	// nobody can decide on a terminal request, not even same-tier peers
	manager := byEmail(t, parts, "manager@example.com")
	_, err = env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: manager.ID, Decision: engine.DecisionApproved,
	})
	var it engine.InvalidTransitionError
	if err == nil || !errors.As(err, &it) {
		t.Fatalf("expected invalid transition after reject, got %v", err)
	}
}

func TestNotYourTurn(t *testing.T) {
	env := newTestEnv(t)
	q, parts := twoTierRequest(t, env, 0)
	vp := byEmail(t, parts, "vp@example.com")
	_, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: vp.ID, Decision: engine.DecisionApproved,
	})
	var nyt engine.NotYourTurnError
	if err == nil || !errors.As(err, &nyt) {
		t.Fatalf("expected not-your-turn, got %v", err)
	}
	if nyt.ParticipantTier != 2 || nyt.CurrentTier != 1 {
		t.Fatalf("unexpected tiers in error: %+v", nyt)
	}
}

func TestDuplicateDecision(t *testing.T) {
	env := newTestEnv(t)
	q, parts := twoTierRequest(t, env, 0)
	lead := byEmail(t, parts, "lead@example.com")
	if _, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: lead.ID, Decision: engine.DecisionApproved,
	}); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	_, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: lead.ID, Decision: engine.DecisionRejected,
	})
	var das engine.DecisionAlreadySubmittedError
	if err == nil || !errors.As(err, &das) {
		t.Fatalf("expected duplicate-decision error, got %v", err)
	}
	if das.Status != domain.ParticipantApproved {
		t.Fatalf("expected recorded decision approved, got %s", das.Status)
	}
}

func TestDuplicateDecisionAfterTierAdvance(t *testing.T) {
	env := newTestEnv(t)
	q, parts, err := env.Engine.CreateRequest(env.Ctx, engine.CreateRequestOptions{
		AdID: "ad-1",
		Participants: []engine.ParticipantInput{
			{Email: "a@example.com", Tier: 1},
			{Email: "b@example.com", Tier: 2, IsFinalApprover: true},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	a := byEmail(t, parts, "a@example.com")
	q2, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: a.ID, Decision: engine.DecisionApproved,
	})
	if err != nil || q2.CurrentTier != 2 {
		t.Fatalf("expected advance to tier 2, got %d err %v", q2.CurrentTier, err)
	}
	// a already decided; the review moving past tier 1 must not turn that
	// into a not-your-turn refusal
	_, err = env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: a.ID, Decision: engine.DecisionApproved,
	})
	var das engine.DecisionAlreadySubmittedError
	if err == nil || !errors.As(err, &das) {
		t.Fatalf("expected duplicate-decision error, got %v", err)
	}
}

func TestExpirationGate(t *testing.T) {
	env := newTestEnv(t)
	q, parts := twoTierRequest(t, env, 1)
	*env.Clock = env.Clock.Add(48 * time.Hour)

	lead := byEmail(t, parts, "lead@example.com")
	_, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: lead.ID, Decision: engine.DecisionApproved,
	})
	var exp engine.ExpiredRequestError
	if err == nil || !errors.As(err, &exp) {
		t.Fatalf("expected expired error, got %v", err)
	}
	// expiration is persisted, not just reported
	got, err := env.Engine.Repo.GetRequest(env.Ctx, q.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.Status != domain.RequestExpired {
		t.Fatalf("expected expired persisted, got %s", got.Status)
	}
	events, _ := env.Engine.Repo.ListActivity(env.Ctx, q.ID, 50)
	found := false
	for _, e := range events {
		if e.EventType == "request_expired" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected request_expired event")
	}
}

func TestLazyExpirationOnRead(t *testing.T) {
	env := newTestEnv(t)
	q, _ := twoTierRequest(t, env, 1)
	*env.Clock = env.Clock.Add(72 * time.Hour)
	got, err := env.Engine.Get(env.Ctx, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.RequestExpired {
		t.Fatalf("read should persist expiration, got %s", got.Status)
	}
}

func TestRevisionFlow(t *testing.T) {
	env := newTestEnv(t)
	q, parts := twoTierRequest(t, env, 0)
	lead := byEmail(t, parts, "lead@example.com")

	suggestions, err := env.Engine.SubmitRevisions(env.Ctx, engine.RevisionBatchOptions{
		RequestID:     q.ID,
		ParticipantID: lead.ID,
		Items: []engine.RevisionInput{
			{ElementPath: "headline", OriginalValue: "Summer Sale", RevisedValue: "Winter Sale", Comment: "season is over"},
			{ElementPath: "cta.label", OriginalValue: "Shop now", RevisedValue: "Browse deals"},
		},
	})
	if err != nil {
		t.Fatalf("submit revisions: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
	got, _ := env.Engine.Repo.GetRequest(env.Ctx, q.ID)
	if got.Status != domain.RequestRevisionRequested {
		t.Fatalf("expected revision_requested, got %s", got.Status)
	}

	// the whole batch is one audit entry
	events, _ := env.Engine.Repo.ListActivity(env.Ctx, q.ID, 50)
	batches := 0
	for _, e := range events {
		if e.EventType == "revision_submitted" {
			batches++
			if !strings.Contains(e.MetadataJSON, `"count":2`) {
				t.Fatalf("expected batch count in metadata, got %s", e.MetadataJSON)
			}
		}
	}
	if batches != 1 {
		t.Fatalf("expected one revision_submitted event, got %d", batches)
	}

	// decisions are parked while revisions are open
	manager := byEmail(t, parts, "manager@example.com")
	_, err = env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: manager.ID, Decision: engine.DecisionApproved,
	})
	var it engine.InvalidTransitionError
	if err == nil || !errors.As(err, &it) {
		t.Fatalf("expected decisions blocked during revisions, got %v", err)
	}

	// resubmit is blocked until every suggestion is resolved
	_, err = env.Engine.Resubmit(env.Ctx, q.ID, "owner@example.com", "")
	var ve engine.ValidationError
	if err == nil || !errors.As(err, &ve) {
		t.Fatalf("expected resubmit blocked by pending revisions, got %v", err)
	}

	accepted, err := env.Engine.ResolveRevision(env.Ctx, q.ID, suggestions[0].ID, true, "owner@example.com", "")
	if err != nil {
		t.Fatalf("accept revision: %v", err)
	}
	if accepted.Status != domain.RevisionAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if _, err := env.Engine.ResolveRevision(env.Ctx, q.ID, suggestions[1].ID, false, "owner@example.com", ""); err != nil {
		t.Fatalf("decline revision: %v", err)
	}
	// resolving twice is rejected
	if _, err := env.Engine.ResolveRevision(env.Ctx, q.ID, suggestions[0].ID, false, "owner@example.com", ""); err == nil {
		t.Fatalf("expected error resolving a settled suggestion")
	}

	// accepted value lands in the snapshot, declined one does not
	got, _ = env.Engine.Repo.GetRequest(env.Ctx, q.ID)
	if !strings.Contains(got.SnapshotJSON, "Winter Sale") {
		t.Fatalf("accepted revision missing from snapshot: %s", got.SnapshotJSON)
	}
	if strings.Contains(got.SnapshotJSON, "Browse deals") {
		t.Fatalf("declined revision applied to snapshot: %s", got.SnapshotJSON)
	}

	resubmitted, err := env.Engine.Resubmit(env.Ctx, q.ID, "owner@example.com", "")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.Status != domain.RequestInReview || resubmitted.CurrentTier != 1 {
		t.Fatalf("resubmit should restart review at tier 1, got %s/%d", resubmitted.Status, resubmitted.CurrentTier)
	}
	all, _ := env.Engine.Repo.ListParticipants(env.Ctx, q.ID)
	for _, p := range all {
		if p.Status != domain.ParticipantPending || p.DecidedAt != nil {
			t.Fatalf("participant %s not reset: %s", p.Email, p.Status)
		}
	}
	// whole flow runs again after resubmission
	if _, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: lead.ID, Decision: engine.DecisionApproved,
	}); err != nil {
		t.Fatalf("decision after resubmit: %v", err)
	}
}

func TestRevisionsReopenRejectedRequest(t *testing.T) {
	env := newTestEnv(t)
	q, parts, err := env.Engine.CreateRequest(env.Ctx, engine.CreateRequestOptions{
		AdID:         "ad-1",
		Participants: []engine.ParticipantInput{{Email: "solo@example.com", Tier: 1}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	solo := byEmail(t, parts, "solo@example.com")
	q2, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID: q.ID, ParticipantID: solo.ID, Decision: engine.DecisionRejected,
	})
	if err != nil || q2.Status != domain.RequestRejected {
		t.Fatalf("expected rejected, got %s err %v", q2.Status, err)
	}

	// suggestions after a rejection reopen the loop
	suggestions, err := env.Engine.SubmitRevisions(env.Ctx, engine.RevisionBatchOptions{
		RequestID:     q.ID,
		ParticipantID: solo.ID,
		Items: []engine.RevisionInput{
			{ElementPath: "headline", OriginalValue: "Summer Sale", RevisedValue: "Clearance"},
		},
	})
	if err != nil {
		t.Fatalf("revisions after reject: %v", err)
	}
	if suggestions[0].Status != domain.RevisionPending {
		t.Fatalf("expected pending suggestion, got %s", suggestions[0].Status)
	}
	got, _ := env.Engine.Repo.GetRequest(env.Ctx, q.ID)
	if got.Status != domain.RequestRevisionRequested {
		t.Fatalf("expected revision_requested after suggestions, got %s", got.Status)
	}
	if _, err := env.Engine.ResolveRevision(env.Ctx, q.ID, suggestions[0].ID, true, "owner@example.com", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	resubmitted, err := env.Engine.Resubmit(env.Ctx, q.ID, "owner@example.com", "")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.Status != domain.RequestInReview {
		t.Fatalf("expected review to reopen, got %s", resubmitted.Status)
	}
}

func TestRecordActivityRefusesReservedTypes(t *testing.T) {
	env := newTestEnv(t)
	q, _ := twoTierRequest(t, env, 0)
	if err := env.Engine.RecordActivity(env.Ctx, q.ID, "request_approved", "x@example.com", "", nil); err == nil {
		t.Fatalf("expected reserved event type to be refused")
	}
	if err := env.Engine.RecordActivity(env.Ctx, q.ID, "email_sent", "x@example.com", "", nil); err != nil {
		t.Fatalf("record activity: %v", err)
	}
	events, _ := env.Engine.Repo.ListActivity(env.Ctx, q.ID, 10)
	if events[0].EventType != "email_sent" {
		t.Fatalf("expected email_sent event, got %s", events[0].EventType)
	}
}

func TestResubmitOnlyFromRevisionRequested(t *testing.T) {
	env := newTestEnv(t)
	q, _ := twoTierRequest(t, env, 0)
	_, err := env.Engine.Resubmit(env.Ctx, q.ID, "owner@example.com", "")
	var it engine.InvalidTransitionError
	if err == nil || !errors.As(err, &it) {
		t.Fatalf("expected invalid transition for resubmit from pending, got %v", err)
	}
}

func TestSnapshotIsolatedFromAdEdits(t *testing.T) {
	env := newTestEnv(t)
	q, _ := twoTierRequest(t, env, 0)
	nowStr := env.Clock.Format(time.RFC3339)
	if err := env.Engine.Repo.UpdateAdContent(env.Ctx, "ad-1", `{"headline":"Changed"}`, nowStr); err != nil {
		t.Fatalf("update ad: %v", err)
	}
	got, err := env.Engine.Get(env.Ctx, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(got.SnapshotJSON, "Summer Sale") {
		t.Fatalf("snapshot should be unaffected by ad edits: %s", got.SnapshotJSON)
	}
}

type recordingDispatcher struct {
	created   []int
	decisions []string
}

func (d *recordingDispatcher) ShareLink(q domain.ApprovalRequest) string {
	return "https://hub.example.com/share/" + q.TrackingID
}

func (d *recordingDispatcher) RequestCreated(_ context.Context, _ domain.ApprovalRequest, participants []domain.Participant) {
	d.created = append(d.created, len(participants))
}

func (d *recordingDispatcher) DecisionRecorded(_ context.Context, _ domain.ApprovalRequest, email, decision string) {
	d.decisions = append(d.decisions, email+":"+decision)
}

func TestDispatcherHearsCommittedMutations(t *testing.T) {
	env := newTestEnv(t)
	disp := &recordingDispatcher{}
	env.Engine.Notify = disp

	q, parts := twoTierRequest(t, env, 0)
	if len(disp.created) != 1 || disp.created[0] != 3 {
		t.Fatalf("expected one creation announcement with 3 reviewers, got %v", disp.created)
	}
	if got := env.Engine.ShareLink(q); got != "https://hub.example.com/share/"+q.TrackingID {
		t.Fatalf("share link not delegated: %q", got)
	}

	lead := byEmail(t, parts, "lead@example.com")
	if _, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID:     q.ID,
		ParticipantID: lead.ID,
		Decision:      engine.DecisionApproved,
	}); err != nil {
		t.Fatalf("decision: %v", err)
	}
	if len(disp.decisions) != 1 || disp.decisions[0] != "lead@example.com:approved" {
		t.Fatalf("expected one decision announcement, got %v", disp.decisions)
	}

	// a refused decision never reaches the dispatcher
	if _, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID:     q.ID,
		ParticipantID: lead.ID,
		Decision:      engine.DecisionRejected,
	}); err == nil {
		t.Fatal("expected duplicate decision to be refused")
	}
	if len(disp.decisions) != 1 {
		t.Fatalf("refused decision leaked to dispatcher: %v", disp.decisions)
	}
}

func TestActivityCarriesEngineClock(t *testing.T) {
	env := newTestEnv(t)
	q, parts := twoTierRequest(t, env, 0)

	*env.Clock = env.Clock.Add(90 * time.Minute)
	lead := byEmail(t, parts, "lead@example.com")
	if _, err := env.Engine.SubmitDecision(env.Ctx, engine.DecisionOptions{
		RequestID:     q.ID,
		ParticipantID: lead.ID,
		Decision:      engine.DecisionApproved,
	}); err != nil {
		t.Fatalf("decision: %v", err)
	}

	events, err := env.Engine.Repo.ListActivity(env.Ctx, q.ID, 50)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	want := map[string]string{
		"request_created":    "2024-01-01T00:00:00Z",
		"decision_submitted": "2024-01-01T01:30:00Z",
	}
	for _, e := range events {
		ts, ok := want[e.EventType]
		if !ok {
			continue
		}
		if e.CreatedAt != ts {
			t.Fatalf("%s stamped %s, want %s", e.EventType, e.CreatedAt, ts)
		}
		delete(want, e.EventType)
	}
	if len(want) != 0 {
		t.Fatalf("missing events: %v", want)
	}
}
