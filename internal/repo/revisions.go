package repo

import (
	"context"
	"database/sql"

	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
)

const revisionCols = `id,request_id,participant_id,element_path,original_value,revised_value,comment,status,created_at,resolved_at`

func scanRevision(scan func(dest ...any) error) (domain.RevisionSuggestion, error) {
	var s domain.RevisionSuggestion
	var original, comment, resolved sql.NullString
	err := scan(&s.ID, &s.RequestID, &s.ParticipantID, &s.ElementPath, &original, &s.RevisedValue, &comment, &s.Status, &s.CreatedAt, &resolved)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.OriginalValue = original.String
	s.Comment = comment.String
	if resolved.Valid {
		s.ResolvedAt = &resolved.String
	}
	return s, nil
}

func (r Repo) InsertRevisionTx(ctx context.Context, tx *sql.Tx, s domain.RevisionSuggestion) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO revision_suggestions(`+revisionCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.RequestID, s.ParticipantID, s.ElementPath, s.OriginalValue, s.RevisedValue, nullable(s.Comment), s.Status, s.CreatedAt, nullableStringPtr(s.ResolvedAt))
	return err
}

func (r Repo) GetRevision(ctx context.Context, requestID, revisionID string) (domain.RevisionSuggestion, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+revisionCols+` FROM revision_suggestions WHERE request_id=? AND id=?`, requestID, revisionID)
	return scanRevision(row.Scan)
}

func (r Repo) GetRevisionTx(ctx context.Context, tx *sql.Tx, requestID, revisionID string) (domain.RevisionSuggestion, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+revisionCols+` FROM revision_suggestions WHERE request_id=? AND id=?`, requestID, revisionID)
	return scanRevision(row.Scan)
}

func (r Repo) ListRevisions(ctx context.Context, requestID string) ([]domain.RevisionSuggestion, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+revisionCols+` FROM revision_suggestions WHERE request_id=? ORDER BY created_at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RevisionSuggestion
	for rows.Next() {
		s, err := scanRevision(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateRevisionStatusTx(ctx context.Context, tx *sql.Tx, revisionID, status, resolvedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE revision_suggestions SET status=?, resolved_at=? WHERE id=?`, status, nullable(resolvedAt), revisionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPendingRevisionsTx reports revisions still awaiting the creative team.
func (r Repo) CountPendingRevisionsTx(ctx context.Context, tx *sql.Tx, requestID string) (int, error) {
	row := tx.QueryRowContext(ctx, `SELECT count(*) FROM revision_suggestions WHERE request_id=? AND status='pending'`, requestID)
	var n int
	err := row.Scan(&n)
	return n, err
}
