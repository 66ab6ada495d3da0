package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends audit entries to the approval_activity log. Entries are
// written inside the caller's transaction so a state change and its log
// record commit or roll back together. The caller supplies the timestamp so
// the log carries the same clock as the mutation it records.
type Writer struct {
	DB *sql.DB
}

type Metadata map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, at time.Time, requestID, eventType, userEmail, userName string, meta Metadata) error {
	ts := at.UTC().Format(time.RFC3339)
	if meta == nil {
		meta = Metadata{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO approval_activity(request_id,event_type,user_email,user_name,metadata_json,created_at) VALUES (?,?,?,?,?,?)`,
		requestID, eventType, userEmail, nullable(userName), string(data), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
