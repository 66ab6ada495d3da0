package domain

// Request lifecycle statuses. A request is terminal once it reaches
// approved, rejected or expired; no further decisions are accepted.
const (
	RequestPending           = "pending"
	RequestInReview          = "in_review"
	RequestRevisionRequested = "revision_requested"
	RequestApproved          = "approved"
	RequestRejected          = "rejected"
	RequestExpired           = "expired"
)

// Per-participant decision states.
const (
	ParticipantPending  = "pending"
	ParticipantApproved = "approved"
	ParticipantRejected = "rejected"
)

// Revision suggestion states.
const (
	RevisionPending  = "pending"
	RevisionAccepted = "accepted"
	RevisionDeclined = "declined"
)

// TerminalRequestStatus reports whether no further decision can change the outcome.
func TerminalRequestStatus(status string) bool {
	switch status {
	case RequestApproved, RequestRejected, RequestExpired:
		return true
	}
	return false
}

type Advertiser struct {
	ID              string `json:"id"`
	CompanyName     string `json:"company_name"`
	LogoURL         string `json:"logo_url,omitempty"`
	Website         string `json:"website,omitempty"`
	Category        string `json:"category,omitempty"`
	CompanyOverview string `json:"company_overview,omitempty"`
	CreatedAt       string `json:"created_at" format:"date-time"`
	UpdatedAt       string `json:"updated_at" format:"date-time"`
}

type Campaign struct {
	ID           string  `json:"id"`
	AdvertiserID string  `json:"advertiser_id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Status       string  `json:"status"`
	StartDate    *string `json:"start_date,omitempty" format:"date-time"`
	EndDate      *string `json:"end_date,omitempty" format:"date-time"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

// Ad is the creative under review. ContentJSON holds the editable fields
// (name, copy, format, dimensions, ...); approval requests capture their own
// snapshot of it so in-flight reviews are not affected by later edits.
type Ad struct {
	ID           string `json:"id"`
	AdvertiserID string `json:"advertiser_id"`
	ShortID      string `json:"short_id"`
	ContentJSON  string `json:"content_json"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

// ApprovalRequest tracks one creative through the tiered review flow.
// Version is bumped on every mutation and guards against concurrent
// double-advance (optimistic check in the engine).
type ApprovalRequest struct {
	ID           string  `json:"id"`
	AdvertiserID string  `json:"advertiser_id"`
	AdID         string  `json:"ad_id"`
	SnapshotJSON string  `json:"snapshot_json"`
	Status       string  `json:"status" enum:"pending,in_review,revision_requested,approved,rejected,expired"`
	CurrentTier  int     `json:"current_tier"`
	Version      int64   `json:"version"`
	TrackingID   string  `json:"tracking_id,omitempty"`
	PreviewURL   string  `json:"preview_url,omitempty"`
	ExpiresAt    *string `json:"expires_at,omitempty" format:"date-time"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

// Participant is a reviewer bound to one tier of one approval request.
// Email is stored lowercased and is unique within the request.
type Participant struct {
	ID              string  `json:"id"`
	RequestID       string  `json:"request_id"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	Tier            int     `json:"tier"`
	Status          string  `json:"status" enum:"pending,approved,rejected"`
	IsFinalApprover bool    `json:"is_final_approver"`
	DecidedAt       *string `json:"decided_at,omitempty" format:"date-time"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

// RevisionSuggestion is a proposed edit to one field of the reviewed creative.
type RevisionSuggestion struct {
	ID            string  `json:"id"`
	RequestID     string  `json:"request_id"`
	ParticipantID string  `json:"participant_id"`
	ElementPath   string  `json:"element_path"`
	OriginalValue string  `json:"original_value"`
	RevisedValue  string  `json:"revised_value"`
	Comment       string  `json:"comment,omitempty"`
	Status        string  `json:"status" enum:"pending,accepted,declined"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	ResolvedAt    *string `json:"resolved_at,omitempty" format:"date-time"`
}

// ActivityEvent is one append-only audit entry. ID is the insertion order
// tie-breaker; rows are never updated or deleted.
type ActivityEvent struct {
	ID           int64  `json:"id"`
	RequestID    string `json:"request_id"`
	EventType    string `json:"event_type"`
	UserEmail    string `json:"user_email"`
	UserName     string `json:"user_name,omitempty"`
	MetadataJSON string `json:"metadata_json"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Approver is a roster entry: someone the advertiser routes reviews to.
// Participants are per-request; the roster persists across requests and is
// replenished automatically from each request's reviewer list.
type Approver struct {
	ID              string `json:"id"`
	AdvertiserID    string `json:"advertiser_id"`
	Email           string `json:"email"`
	Name            string `json:"name,omitempty"`
	IsFinalApprover bool   `json:"is_final_approver"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
