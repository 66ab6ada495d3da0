package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- advertisers ---

func (r Repo) InsertAdvertiser(ctx context.Context, a domain.Advertiser) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO advertisers(id,company_name,logo_url,website,category,company_overview,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.CompanyName, nullable(a.LogoURL), nullable(a.Website), nullable(a.Category), nullable(a.CompanyOverview), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) GetAdvertiser(ctx context.Context, id string) (domain.Advertiser, error) {
	var a domain.Advertiser
	var logo, website, category, overview sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,company_name,logo_url,website,category,company_overview,created_at,updated_at FROM advertisers WHERE id=?`, id).
		Scan(&a.ID, &a.CompanyName, &logo, &website, &category, &overview, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.LogoURL = logo.String
	a.Website = website.String
	a.Category = category.String
	a.CompanyOverview = overview.String
	return a, nil
}

// AdvertiserUpdate carries partial advertiser profile edits; nil fields are untouched.
type AdvertiserUpdate struct {
	CompanyName     *string
	LogoURL         *string
	Website         *string
	Category        *string
	CompanyOverview *string
}

func (r Repo) UpdateAdvertiser(ctx context.Context, id, updatedAt string, u AdvertiserUpdate) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v *string) {
		if v != nil {
			fields = append(fields, col+"=?")
			args = append(args, nullable(*v))
		}
	}
	set("company_name", u.CompanyName)
	set("logo_url", u.LogoURL)
	set("website", u.Website)
	set("category", u.Category)
	set("company_overview", u.CompanyOverview)
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, `UPDATE advertisers SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- approval requests ---

const requestCols = `id,advertiser_id,ad_id,snapshot_json,status,current_tier,version,tracking_id,preview_url,expires_at,created_at,updated_at`

func scanRequest(scan func(dest ...any) error) (domain.ApprovalRequest, error) {
	var q domain.ApprovalRequest
	var tracking, preview, expires sql.NullString
	err := scan(&q.ID, &q.AdvertiserID, &q.AdID, &q.SnapshotJSON, &q.Status, &q.CurrentTier, &q.Version, &tracking, &preview, &expires, &q.CreatedAt, &q.UpdatedAt)
	if err == sql.ErrNoRows {
		return q, ErrNotFound
	}
	if err != nil {
		return q, err
	}
	q.TrackingID = tracking.String
	q.PreviewURL = preview.String
	if expires.Valid {
		q.ExpiresAt = &expires.String
	}
	return q, nil
}

func (r Repo) InsertRequestTx(ctx context.Context, tx *sql.Tx, q domain.ApprovalRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO approval_requests(`+requestCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		q.ID, q.AdvertiserID, q.AdID, q.SnapshotJSON, q.Status, q.CurrentTier, q.Version,
		nullable(q.TrackingID), nullable(q.PreviewURL), nullableStringPtr(q.ExpiresAt), q.CreatedAt, q.UpdatedAt)
	return err
}

func (r Repo) GetRequest(ctx context.Context, id string) (domain.ApprovalRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requestCols+` FROM approval_requests WHERE id=?`, id)
	return scanRequest(row.Scan)
}

func (r Repo) GetRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.ApprovalRequest, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+requestCols+` FROM approval_requests WHERE id=?`, id)
	return scanRequest(row.Scan)
}

// GetRequestByTrackingID resolves the opaque token embedded in share links.
func (r Repo) GetRequestByTrackingID(ctx context.Context, trackingID string) (domain.ApprovalRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requestCols+` FROM approval_requests WHERE tracking_id=?`, trackingID)
	return scanRequest(row.Scan)
}

type RequestFilters struct {
	AdvertiserID string
	AdID         string
	Status       string
	Limit        int
}

func (r Repo) ListRequests(ctx context.Context, f RequestFilters) ([]domain.ApprovalRequest, error) {
	var clauses []string
	var args []any
	if f.AdvertiserID != "" {
		clauses = append(clauses, "advertiser_id=?")
		args = append(args, f.AdvertiserID)
	}
	if f.AdID != "" {
		clauses = append(clauses, "ad_id=?")
		args = append(args, f.AdID)
	}
	if f.Status != "" && f.Status != "all" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + requestCols + ` FROM approval_requests ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ApprovalRequest
	for rows.Next() {
		q, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, rows.Err()
}

// UpdateRequestStateTx writes the new status/tier guarded by the version the
// caller read. A zero-row update means a concurrent writer got there first.
func (r Repo) UpdateRequestStateTx(ctx context.Context, tx *sql.Tx, id, status string, currentTier int, oldVersion int64, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE approval_requests SET status=?, current_tier=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		status, currentTier, updatedAt, id, oldVersion)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r Repo) UpdateRequestSnapshotTx(ctx context.Context, tx *sql.Tx, id, snapshotJSON, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE approval_requests SET snapshot_json=?, version=version+1, updated_at=? WHERE id=?`,
		snapshotJSON, updatedAt, id)
	return err
}

// CountRequestsByStatus powers the dashboard summary cards.
func (r Repo) CountRequestsByStatus(ctx context.Context, advertiserID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM approval_requests WHERE advertiser_id=? GROUP BY status`, advertiserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) CountApprovedSince(ctx context.Context, advertiserID, since string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM approval_requests WHERE advertiser_id=? AND status='approved' AND updated_at>=?`, advertiserID, since)
	var n int
	err := row.Scan(&n)
	return n, err
}

// --- participants ---

const participantCols = `id,request_id,email,name,tier,status,is_final_approver,decided_at,created_at`

func scanParticipant(scan func(dest ...any) error) (domain.Participant, error) {
	var p domain.Participant
	var decided sql.NullString
	err := scan(&p.ID, &p.RequestID, &p.Email, &p.Name, &p.Tier, &p.Status, &p.IsFinalApprover, &decided, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if decided.Valid {
		p.DecidedAt = &decided.String
	}
	return p, nil
}

func (r Repo) InsertParticipantTx(ctx context.Context, tx *sql.Tx, p domain.Participant) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO approval_participants(`+participantCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.RequestID, strings.ToLower(p.Email), p.Name, p.Tier, p.Status, p.IsFinalApprover, nullableStringPtr(p.DecidedAt), p.CreatedAt)
	return err
}

func (r Repo) GetParticipant(ctx context.Context, requestID, participantID string) (domain.Participant, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+participantCols+` FROM approval_participants WHERE request_id=? AND id=?`, requestID, participantID)
	return scanParticipant(row.Scan)
}

func (r Repo) GetParticipantTx(ctx context.Context, tx *sql.Tx, requestID, participantID string) (domain.Participant, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+participantCols+` FROM approval_participants WHERE request_id=? AND id=?`, requestID, participantID)
	return scanParticipant(row.Scan)
}

func (r Repo) ListParticipants(ctx context.Context, requestID string) ([]domain.Participant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+participantCols+` FROM approval_participants WHERE request_id=? ORDER BY tier ASC, created_at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (r Repo) ListParticipantsTx(ctx context.Context, tx *sql.Tx, requestID string) ([]domain.Participant, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+participantCols+` FROM approval_participants WHERE request_id=? ORDER BY tier ASC, created_at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (r Repo) ListParticipantsByTier(ctx context.Context, requestID string, tier int) ([]domain.Participant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+participantCols+` FROM approval_participants WHERE request_id=? AND tier=? ORDER BY created_at ASC, id ASC`, requestID, tier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func collectParticipants(rows *sql.Rows) ([]domain.Participant, error) {
	var res []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateParticipantStatusTx(ctx context.Context, tx *sql.Tx, participantID, status string, decidedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE approval_participants SET status=?, decided_at=? WHERE id=?`, status, nullable(decidedAt), participantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetParticipantsTx returns every participant of a request to pending, used
// when a resubmitted creative restarts review from the first tier.
func (r Repo) ResetParticipantsTx(ctx context.Context, tx *sql.Tx, requestID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE approval_participants SET status='pending', decided_at=NULL WHERE request_id=?`, requestID)
	return err
}

// FindParticipantByEmail is the login-by-email lookup: most recent request first.
func (r Repo) FindParticipantByEmail(ctx context.Context, email string) (domain.Participant, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+participantCols+` FROM approval_participants WHERE email=? ORDER BY created_at DESC, id DESC LIMIT 1`, strings.ToLower(email))
	return scanParticipant(row.Scan)
}

// --- approver roster ---

const approverCols = `id,advertiser_id,email,name,is_final_approver,created_at`

const upsertApproverSQL = `INSERT INTO approvers(` + approverCols + `) VALUES (?,?,?,?,?,?)
ON CONFLICT(advertiser_id,email) DO UPDATE SET
	name=CASE WHEN excluded.name<>'' THEN excluded.name ELSE approvers.name END,
	is_final_approver=MAX(approvers.is_final_approver, excluded.is_final_approver)`

// UpsertApprover adds someone to the advertiser's roster, keyed by email.
// A repeat entry refreshes the name and may promote to final approver, but
// never demotes.
func (r Repo) UpsertApprover(ctx context.Context, a domain.Approver) error {
	_, err := r.DB.ExecContext(ctx, upsertApproverSQL,
		a.ID, a.AdvertiserID, strings.ToLower(a.Email), a.Name, a.IsFinalApprover, a.CreatedAt)
	return err
}

func (r Repo) UpsertApproverTx(ctx context.Context, tx *sql.Tx, a domain.Approver) error {
	_, err := tx.ExecContext(ctx, upsertApproverSQL,
		a.ID, a.AdvertiserID, strings.ToLower(a.Email), a.Name, a.IsFinalApprover, a.CreatedAt)
	return err
}

// ListApprovers returns the advertiser's reviewer roster, final approvers first.
func (r Repo) ListApprovers(ctx context.Context, advertiserID string) ([]domain.Approver, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+approverCols+` FROM approvers WHERE advertiser_id=? ORDER BY is_final_approver DESC, email ASC`, advertiserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Approver
	for rows.Next() {
		var a domain.Approver
		if err := rows.Scan(&a.ID, &a.AdvertiserID, &a.Email, &a.Name, &a.IsFinalApprover, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) DeleteApprover(ctx context.Context, advertiserID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM approvers WHERE advertiser_id=? AND id=?`, advertiserID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- activity ---

// ListActivity returns the audit timeline for a request, newest first.
// Ties on created_at break by insertion order.
func (r Repo) ListActivity(ctx context.Context, requestID string, limit int) ([]domain.ActivityEvent, error) {
	query := `SELECT id,request_id,event_type,user_email,user_name,metadata_json,created_at FROM approval_activity WHERE request_id=? ORDER BY created_at DESC, id DESC`
	args := []any{requestID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var name sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.EventType, &e.UserEmail, &name, &e.MetadataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UserName = name.String
		res = append(res, e)
	}
	return res, rows.Err()
}

// RecentActivity returns the newest activity rows across all of the
// advertiser's requests, for the dashboard feed.
func (r Repo) RecentActivity(ctx context.Context, advertiserID string, limit int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT a.id,a.request_id,a.event_type,a.user_email,a.user_name,a.metadata_json,a.created_at
FROM approval_activity a
JOIN approval_requests q ON q.id=a.request_id
WHERE q.advertiser_id=?
ORDER BY a.created_at DESC, a.id DESC LIMIT ?`, advertiserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var name sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.EventType, &e.UserEmail, &name, &e.MetadataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UserName = name.String
		res = append(res, e)
	}
	return res, rows.Err()
}

// ActivityAfter returns activity rows with IDs greater than the cursor in
// ascending order, across all requests. The webhook forwarder tails this.
func (r Repo) ActivityAfter(ctx context.Context, limit int, cursor int64) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,request_id,event_type,user_email,user_name,metadata_json,created_at FROM approval_activity WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var name sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.EventType, &e.UserEmail, &name, &e.MetadataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UserName = name.String
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestActivityID returns the most recent activity row ID.
func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM approval_activity`)
	var id int64
	err := row.Scan(&id)
	return id, err
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
