package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edwinlov3tt/approval-dashboard/internal/activity"
	"github.com/edwinlov3tt/approval-dashboard/internal/config"
	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
	"github.com/edwinlov3tt/approval-dashboard/internal/notify"
	"github.com/edwinlov3tt/approval-dashboard/internal/repo"
)

// Decision values a participant may submit.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// mutationRetries bounds the optimistic-version retry loop.
const mutationRetries = 3

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Config   *config.Config
	Notify   notify.Dispatcher
	Now      func() time.Time

	locks *requestLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Activity: activity.Writer{DB: db},
		Config:   cfg,
		Notify:   notify.NewLinkDispatcher(cfg),
		Now:      time.Now,
		locks:    &requestLocks{},
	}
}

// ShareLink returns the public review URL for a request, empty when no share
// base is configured.
func (e Engine) ShareLink(q domain.ApprovalRequest) string {
	if e.Notify == nil {
		return ""
	}
	return e.Notify.ShareLink(q)
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// requestLocks serializes mutations per request. The version column already
// rejects lost updates; the lock keeps concurrent decisions from burning
// retries against each other.
type requestLocks struct {
	shards [64]sync.Mutex
}

func (l *requestLocks) forRequest(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &l.shards[h.Sum32()%uint32(len(l.shards))]
}

func (e Engine) lock(requestID string) func() {
	if e.locks == nil {
		return func() {}
	}
	mu := e.locks.forRequest(requestID)
	mu.Lock()
	return mu.Unlock
}

// ParticipantInput names one reviewer on a new request.
type ParticipantInput struct {
	Email           string
	Name            string
	Tier            int
	IsFinalApprover bool
}

// CreateRequestOptions are parameters for opening a review.
type CreateRequestOptions struct {
	AdID          string
	Participants  []ParticipantInput
	PreviewURL    string
	ExpiresInDays int
	ActorEmail    string
	ActorName     string
}

// CreateRequest opens a review for a creative, snapshotting its content so
// later edits to the ad do not affect reviewers mid-flight.
func (e Engine) CreateRequest(ctx context.Context, opts CreateRequestOptions) (domain.ApprovalRequest, []domain.Participant, error) {
	if opts.AdID == "" {
		return domain.ApprovalRequest{}, nil, ValidationError{Field: "ad_id", Msg: "is required"}
	}
	if len(opts.Participants) == 0 {
		return domain.ApprovalRequest{}, nil, ValidationError{Field: "participants", Msg: "at least one reviewer is required"}
	}
	// Tiers need not be contiguous; review starts at the lowest one present.
	seen := map[string]bool{}
	tiers := map[int]bool{}
	firstTier := 0
	for i, p := range opts.Participants {
		email := strings.ToLower(strings.TrimSpace(p.Email))
		if email == "" || !strings.Contains(email, "@") {
			return domain.ApprovalRequest{}, nil, ValidationError{Field: fmt.Sprintf("participants[%d].email", i), Msg: "must be a valid email"}
		}
		if seen[email] {
			return domain.ApprovalRequest{}, nil, ValidationError{Field: fmt.Sprintf("participants[%d].email", i), Msg: "duplicate reviewer " + email}
		}
		seen[email] = true
		if p.Tier < 1 {
			return domain.ApprovalRequest{}, nil, ValidationError{Field: fmt.Sprintf("participants[%d].tier", i), Msg: "must be >= 1"}
		}
		tiers[p.Tier] = true
		if firstTier == 0 || p.Tier < firstTier {
			firstTier = p.Tier
		}
	}

	ad, err := e.Repo.GetAd(ctx, opts.AdID)
	if err != nil {
		return domain.ApprovalRequest{}, nil, err
	}

	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	days := opts.ExpiresInDays
	if days == 0 && e.Config != nil {
		days = e.Config.Review.DefaultExpiryDays
	}
	var expiresAt *string
	if days > 0 {
		s := now.AddDate(0, 0, days).Format(time.RFC3339)
		expiresAt = &s
	}

	q := domain.ApprovalRequest{
		ID:           uuid.New().String(),
		AdvertiserID: ad.AdvertiserID,
		AdID:         ad.ID,
		SnapshotJSON: ad.ContentJSON,
		Status:       domain.RequestPending,
		CurrentTier:  firstTier,
		Version:      1,
		TrackingID:   uuid.New().String(),
		PreviewURL:   opts.PreviewURL,
		ExpiresAt:    expiresAt,
		CreatedAt:    nowStr,
		UpdatedAt:    nowStr,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ApprovalRequest{}, nil, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRequestTx(ctx, tx, q); err != nil {
		return domain.ApprovalRequest{}, nil, fmt.Errorf("insert request: %w", err)
	}
	parts := make([]domain.Participant, 0, len(opts.Participants))
	for _, in := range opts.Participants {
		p := domain.Participant{
			ID:              uuid.New().String(),
			RequestID:       q.ID,
			Email:           strings.ToLower(strings.TrimSpace(in.Email)),
			Name:            strings.TrimSpace(in.Name),
			Tier:            in.Tier,
			Status:          domain.ParticipantPending,
			IsFinalApprover: in.IsFinalApprover,
			CreatedAt:       nowStr,
		}
		if err := e.Repo.InsertParticipantTx(ctx, tx, p); err != nil {
			return domain.ApprovalRequest{}, nil, fmt.Errorf("insert participant: %w", err)
		}
		// keep the advertiser's roster in sync with whoever gets asked to review
		if err := e.Repo.UpsertApproverTx(ctx, tx, domain.Approver{
			ID:              uuid.New().String(),
			AdvertiserID:    ad.AdvertiserID,
			Email:           p.Email,
			Name:            p.Name,
			IsFinalApprover: p.IsFinalApprover,
			CreatedAt:       nowStr,
		}); err != nil {
			return domain.ApprovalRequest{}, nil, fmt.Errorf("upsert approver: %w", err)
		}
		parts = append(parts, p)
	}
	if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "request_created", opts.ActorEmail, opts.ActorName, activity.Metadata{
		"ad_id":     q.AdID,
		"tiers":     len(tiers),
		"reviewers": len(parts),
	}); err != nil {
		return domain.ApprovalRequest{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ApprovalRequest{}, nil, err
	}
	if e.Notify != nil {
		e.Notify.RequestCreated(ctx, q, parts)
	}
	return q, parts, nil
}

// Get returns the request, lazily persisting expiration if its review window
// has lapsed since the last observation.
func (e Engine) Get(ctx context.Context, requestID string) (domain.ApprovalRequest, error) {
	q, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return q, err
	}
	if !e.isExpired(q) {
		return q, nil
	}
	unlock := e.lock(requestID)
	defer unlock()
	return e.persistExpiration(ctx, q)
}

func (e Engine) isExpired(q domain.ApprovalRequest) bool {
	if domain.TerminalRequestStatus(q.Status) || q.ExpiresAt == nil {
		return false
	}
	exp, err := time.Parse(time.RFC3339, *q.ExpiresAt)
	if err != nil {
		return false
	}
	return !e.now().Before(exp)
}

// persistExpiration flips a lapsed request to expired. Loses gracefully to a
// concurrent writer; the caller re-reads either way.
func (e Engine) persistExpiration(ctx context.Context, q domain.ApprovalRequest) (domain.ApprovalRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return q, err
	}
	defer tx.Rollback()

	nowStr := e.now().UTC().Format(time.RFC3339)
	ok, err := e.Repo.UpdateRequestStateTx(ctx, tx, q.ID, domain.RequestExpired, q.CurrentTier, q.Version, nowStr)
	if err != nil {
		return q, err
	}
	if ok {
		if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "request_expired", "", "", activity.Metadata{"expires_at": *q.ExpiresAt}); err != nil {
			return q, err
		}
		if err := tx.Commit(); err != nil {
			return q, err
		}
	}
	return e.Repo.GetRequest(ctx, q.ID)
}

// DecisionOptions carry one reviewer's verdict.
type DecisionOptions struct {
	RequestID     string
	ParticipantID string
	Decision      string
	Comment       string
}

// SubmitDecision records an approve or reject verdict and re-evaluates the
// request: any rejection ends the review; a unanimous tier either advances
// to the next tier or, at the last tier, approves the request.
func (e Engine) SubmitDecision(ctx context.Context, opts DecisionOptions) (domain.ApprovalRequest, error) {
	if opts.Decision != DecisionApproved && opts.Decision != DecisionRejected {
		return domain.ApprovalRequest{}, ValidationError{Field: "decision", Msg: `must be "approved" or "rejected"`}
	}
	unlock := e.lock(opts.RequestID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < mutationRetries; attempt++ {
		q, retry, err := e.submitDecisionOnce(ctx, opts)
		if !retry {
			if err == nil && e.Notify != nil {
				email := opts.ParticipantID
				if p, perr := e.Repo.GetParticipant(ctx, opts.RequestID, opts.ParticipantID); perr == nil {
					email = p.Email
				}
				e.Notify.DecisionRecorded(ctx, q, email, opts.Decision)
			}
			return q, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrVersionConflict
	}
	return domain.ApprovalRequest{}, lastErr
}

func (e Engine) submitDecisionOnce(ctx context.Context, opts DecisionOptions) (domain.ApprovalRequest, bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ApprovalRequest{}, false, err
	}
	defer tx.Rollback()

	q, err := e.Repo.GetRequestTx(ctx, tx, opts.RequestID)
	if err != nil {
		return q, false, err
	}
	if expErr := e.gateExpiredTx(ctx, tx, &q); expErr != nil {
		return q, false, expErr
	}
	if domain.TerminalRequestStatus(q.Status) {
		return q, false, InvalidTransitionError{Status: q.Status, Action: "decide on"}
	}
	if q.Status == domain.RequestRevisionRequested {
		return q, false, InvalidTransitionError{Status: q.Status, Action: "decide on"}
	}
	p, err := e.Repo.GetParticipantTx(ctx, tx, opts.RequestID, opts.ParticipantID)
	if err != nil {
		return q, false, err
	}
	// A decided participant always gets the duplicate error, even when the
	// review has moved past their tier; not-your-turn is for future tiers.
	if p.Status != domain.ParticipantPending {
		return q, false, DecisionAlreadySubmittedError{ParticipantID: p.ID, Status: p.Status}
	}
	if p.Tier != q.CurrentTier {
		return q, false, NotYourTurnError{ParticipantTier: p.Tier, CurrentTier: q.CurrentTier}
	}

	nowStr := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateParticipantStatusTx(ctx, tx, p.ID, opts.Decision, nowStr); err != nil {
		return q, false, err
	}
	meta := activity.Metadata{"decision": opts.Decision, "tier": p.Tier}
	if opts.Comment != "" {
		meta["comment"] = opts.Comment
	}
	if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "decision_submitted", p.Email, p.Name, meta); err != nil {
		return q, false, err
	}

	newStatus := domain.RequestInReview
	newTier := q.CurrentTier
	if opts.Decision == DecisionRejected {
		newStatus = domain.RequestRejected
		if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "request_rejected", p.Email, p.Name, activity.Metadata{"tier": p.Tier}); err != nil {
			return q, false, err
		}
	} else {
		all, err := e.Repo.ListParticipantsTx(ctx, tx, q.ID)
		if err != nil {
			return q, false, err
		}
		done, next := tierResolved(all, q.CurrentTier)
		if done {
			if next > 0 {
				newTier = next
				if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "tier_advanced", p.Email, p.Name, activity.Metadata{
					"from_tier": q.CurrentTier,
					"to_tier":   newTier,
				}); err != nil {
					return q, false, err
				}
			} else {
				newStatus = domain.RequestApproved
				if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "request_approved", p.Email, p.Name, activity.Metadata{"tier": p.Tier}); err != nil {
					return q, false, err
				}
			}
		}
	}

	ok, err := e.Repo.UpdateRequestStateTx(ctx, tx, q.ID, newStatus, newTier, q.Version, nowStr)
	if err != nil {
		return q, false, err
	}
	if !ok {
		return q, true, ErrVersionConflict
	}
	if err := tx.Commit(); err != nil {
		return q, false, err
	}
	q.Status = newStatus
	q.CurrentTier = newTier
	q.Version++
	q.UpdatedAt = nowStr
	return q, false, nil
}

// tierResolved reports whether every reviewer at the given tier has approved,
// and the next tier that has reviewers (0 when none remains). Tiers may be
// sparse, so advancing skips over unpopulated numbers.
func tierResolved(parts []domain.Participant, tier int) (bool, int) {
	next := 0
	done := true
	for _, p := range parts {
		if p.Tier > tier && (next == 0 || p.Tier < next) {
			next = p.Tier
		}
		if p.Tier == tier && p.Status != domain.ParticipantApproved {
			done = false
		}
	}
	return done, next
}

// lowestTier is where review (re)starts.
func lowestTier(parts []domain.Participant) int {
	low := 0
	for _, p := range parts {
		if low == 0 || p.Tier < low {
			low = p.Tier
		}
	}
	if low == 0 {
		low = 1
	}
	return low
}

// gateExpiredTx persists expiration inside the caller's transaction and
// returns ExpiredRequestError when the window has lapsed.
func (e Engine) gateExpiredTx(ctx context.Context, tx *sql.Tx, q *domain.ApprovalRequest) error {
	if !e.isExpired(*q) {
		return nil
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	ok, err := e.Repo.UpdateRequestStateTx(ctx, tx, q.ID, domain.RequestExpired, q.CurrentTier, q.Version, nowStr)
	if err != nil {
		return err
	}
	if ok {
		if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "request_expired", "", "", activity.Metadata{"expires_at": *q.ExpiresAt}); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		q.Status = domain.RequestExpired
	}
	return ExpiredRequestError{RequestID: q.ID, ExpiresAt: *q.ExpiresAt}
}

// RevisionInput proposes an edit to one creative field.
type RevisionInput struct {
	ElementPath   string
	OriginalValue string
	RevisedValue  string
	Comment       string
}

// RevisionBatchOptions carry a reviewer's change requests.
type RevisionBatchOptions struct {
	RequestID     string
	ParticipantID string
	Items         []RevisionInput
}

// SubmitRevisions records a batch of suggested edits and parks the request in
// revision_requested until the creative team resubmits. The whole batch lands
// as one activity entry.
func (e Engine) SubmitRevisions(ctx context.Context, opts RevisionBatchOptions) ([]domain.RevisionSuggestion, error) {
	if len(opts.Items) == 0 {
		return nil, ValidationError{Field: "revisions", Msg: "at least one suggestion is required"}
	}
	for i, it := range opts.Items {
		if it.ElementPath == "" {
			return nil, ValidationError{Field: fmt.Sprintf("revisions[%d].element_path", i), Msg: "is required"}
		}
		if it.RevisedValue == "" {
			return nil, ValidationError{Field: fmt.Sprintf("revisions[%d].revised_value", i), Msg: "is required"}
		}
	}
	unlock := e.lock(opts.RequestID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	q, err := e.Repo.GetRequestTx(ctx, tx, opts.RequestID)
	if err != nil {
		return nil, err
	}
	if expErr := e.gateExpiredTx(ctx, tx, &q); expErr != nil {
		return nil, expErr
	}
	// A rejected request may still collect suggestions: the revision loop is
	// how a rejection turns into something the advertiser can act on.
	if q.Status == domain.RequestApproved || q.Status == domain.RequestExpired {
		return nil, InvalidTransitionError{Status: q.Status, Action: "request revisions on"}
	}
	p, err := e.Repo.GetParticipantTx(ctx, tx, opts.RequestID, opts.ParticipantID)
	if err != nil {
		return nil, err
	}
	if p.Tier != q.CurrentTier {
		return nil, NotYourTurnError{ParticipantTier: p.Tier, CurrentTier: q.CurrentTier}
	}

	nowStr := e.now().UTC().Format(time.RFC3339)
	suggestions := make([]domain.RevisionSuggestion, 0, len(opts.Items))
	fields := make([]string, 0, len(opts.Items))
	for _, it := range opts.Items {
		s := domain.RevisionSuggestion{
			ID:            uuid.New().String(),
			RequestID:     q.ID,
			ParticipantID: p.ID,
			ElementPath:   it.ElementPath,
			OriginalValue: it.OriginalValue,
			RevisedValue:  it.RevisedValue,
			Comment:       it.Comment,
			Status:        domain.RevisionPending,
			CreatedAt:     nowStr,
		}
		if err := e.Repo.InsertRevisionTx(ctx, tx, s); err != nil {
			return nil, fmt.Errorf("insert revision: %w", err)
		}
		suggestions = append(suggestions, s)
		fields = append(fields, it.ElementPath)
	}
	sort.Strings(fields)
	if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "revision_submitted", p.Email, p.Name, activity.Metadata{
		"count":  len(suggestions),
		"fields": fields,
	}); err != nil {
		return nil, err
	}
	ok, err := e.Repo.UpdateRequestStateTx(ctx, tx, q.ID, domain.RequestRevisionRequested, q.CurrentTier, q.Version, nowStr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVersionConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// ResolveRevision accepts or declines one suggestion. Accepting applies the
// revised value into the request snapshot at the suggestion's element path.
func (e Engine) ResolveRevision(ctx context.Context, requestID, revisionID string, accept bool, actorEmail, actorName string) (domain.RevisionSuggestion, error) {
	unlock := e.lock(requestID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RevisionSuggestion{}, err
	}
	defer tx.Rollback()

	q, err := e.Repo.GetRequestTx(ctx, tx, requestID)
	if err != nil {
		return domain.RevisionSuggestion{}, err
	}
	s, err := e.Repo.GetRevisionTx(ctx, tx, requestID, revisionID)
	if err != nil {
		return s, err
	}
	if s.Status != domain.RevisionPending {
		return s, InvalidTransitionError{Status: s.Status, Action: "resolve"}
	}

	nowStr := e.now().UTC().Format(time.RFC3339)
	action := "declined"
	s.Status = domain.RevisionDeclined
	if accept {
		action = "accepted"
		s.Status = domain.RevisionAccepted
		snapshot, err := applyElement(q.SnapshotJSON, s.ElementPath, s.RevisedValue)
		if err != nil {
			return s, ValidationError{Field: "element_path", Msg: err.Error()}
		}
		if err := e.Repo.UpdateRequestSnapshotTx(ctx, tx, q.ID, snapshot, nowStr); err != nil {
			return s, err
		}
	}
	s.ResolvedAt = &nowStr
	if err := e.Repo.UpdateRevisionStatusTx(ctx, tx, s.ID, s.Status, nowStr); err != nil {
		return s, err
	}
	if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "revision_resolved", actorEmail, actorName, activity.Metadata{
		"revision_id":  s.ID,
		"action":       action,
		"element_path": s.ElementPath,
	}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	return s, nil
}

// applyElement sets a dotted path inside a JSON object snapshot.
func applyElement(snapshotJSON, path, value string) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(snapshotJSON), &doc); err != nil {
		return "", fmt.Errorf("snapshot is not a JSON object: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	parts := strings.Split(path, ".")
	cur := doc
	for _, key := range parts[:len(parts)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Resubmit returns a revision_requested creative to review. Every reviewer is
// reset to pending and the flow restarts from the first tier; the expiry
// window restarts too.
func (e Engine) Resubmit(ctx context.Context, requestID, actorEmail, actorName string) (domain.ApprovalRequest, error) {
	unlock := e.lock(requestID)
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ApprovalRequest{}, err
	}
	defer tx.Rollback()

	q, err := e.Repo.GetRequestTx(ctx, tx, requestID)
	if err != nil {
		return q, err
	}
	if expErr := e.gateExpiredTx(ctx, tx, &q); expErr != nil {
		return q, expErr
	}
	if q.Status != domain.RequestRevisionRequested {
		return q, InvalidTransitionError{Status: q.Status, Action: "resubmit"}
	}
	pending, err := e.Repo.CountPendingRevisionsTx(ctx, tx, q.ID)
	if err != nil {
		return q, err
	}
	if pending > 0 {
		return q, ValidationError{Field: "revisions", Msg: fmt.Sprintf("%d suggestions still unresolved", pending)}
	}

	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	all, err := e.Repo.ListParticipantsTx(ctx, tx, q.ID)
	if err != nil {
		return q, err
	}
	restartTier := lowestTier(all)
	if err := e.Repo.ResetParticipantsTx(ctx, tx, q.ID); err != nil {
		return q, err
	}
	ok, err := e.Repo.UpdateRequestStateTx(ctx, tx, q.ID, domain.RequestInReview, restartTier, q.Version, nowStr)
	if err != nil {
		return q, err
	}
	if !ok {
		return q, ErrVersionConflict
	}
	if e.Config != nil && e.Config.Review.DefaultExpiryDays > 0 {
		exp := now.AddDate(0, 0, e.Config.Review.DefaultExpiryDays).Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, `UPDATE approval_requests SET expires_at=? WHERE id=?`, exp, q.ID); err != nil {
			return q, err
		}
		q.ExpiresAt = &exp
	}
	if err := e.Activity.Append(ctx, tx, e.now(), q.ID, "request_resubmitted", actorEmail, actorName, activity.Metadata{"restart_tier": restartTier}); err != nil {
		return q, err
	}
	if err := tx.Commit(); err != nil {
		return q, err
	}
	q.Status = domain.RequestInReview
	q.CurrentTier = restartTier
	q.Version++
	q.UpdatedAt = nowStr
	return q, nil
}

// reservedEventTypes are only ever written by the engine itself; accepting
// them from callers would let anyone forge workflow history.
var reservedEventTypes = map[string]bool{
	"request_created":     true,
	"decision_submitted":  true,
	"tier_advanced":       true,
	"request_approved":    true,
	"request_rejected":    true,
	"revision_submitted":  true,
	"revision_resolved":   true,
	"request_resubmitted": true,
	"request_expired":     true,
}

// RecordActivity appends a caller-supplied audit entry (views, comments,
// email-sent notices). Engine-owned event types are refused.
func (e Engine) RecordActivity(ctx context.Context, requestID, eventType, email, name string, meta activity.Metadata) error {
	if eventType == "" {
		return ValidationError{Field: "event_type", Msg: "is required"}
	}
	if reservedEventTypes[eventType] {
		return ValidationError{Field: "event_type", Msg: fmt.Sprintf("%q is reserved", eventType)}
	}
	if _, err := e.Repo.GetRequest(ctx, requestID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if meta == nil {
		meta = activity.Metadata{}
	}
	if err := e.Activity.Append(ctx, tx, e.now(), requestID, eventType, email, name, meta); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordView appends a request_viewed entry; share-link opens call this.
func (e Engine) RecordView(ctx context.Context, requestID, email, name string) error {
	if _, err := e.Repo.GetRequest(ctx, requestID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Activity.Append(ctx, tx, e.now(), requestID, "request_viewed", email, name, activity.Metadata{}); err != nil {
		return err
	}
	return tx.Commit()
}

// IsNotFound lets callers collapse repo and engine lookups into one check.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
