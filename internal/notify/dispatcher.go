package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/edwinlov3tt/approval-dashboard/internal/config"
	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
	"github.com/edwinlov3tt/approval-dashboard/internal/repo"
)

const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second
	defaultBatch    = 100
)

// Dispatcher is the engine's outbound notification boundary. The engine calls
// it after a mutation commits; implementations must not block the caller for
// long and must never fail the mutation.
type Dispatcher interface {
	// ShareLink returns the public review URL for a request.
	ShareLink(q domain.ApprovalRequest) string
	// RequestCreated announces a newly opened review and its reviewer list.
	RequestCreated(ctx context.Context, q domain.ApprovalRequest, participants []domain.Participant)
	// DecisionRecorded announces a reviewer's decision.
	DecisionRecorded(ctx context.Context, q domain.ApprovalRequest, email, decision string)
}

// LinkDispatcher is the default Dispatcher: it builds share links from the
// configured base URL and logs outbound events. Webhook delivery rides the
// activity log instead (see WebhookForwarder), so the announcements here only
// need to surface in the server log.
type LinkDispatcher struct {
	BaseURL string
}

func NewLinkDispatcher(cfg *config.Config) LinkDispatcher {
	var base string
	if cfg != nil {
		base = cfg.Share.BaseURL
	}
	return LinkDispatcher{BaseURL: base}
}

func (l LinkDispatcher) ShareLink(q domain.ApprovalRequest) string {
	base := strings.TrimRight(l.BaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/share/" + q.TrackingID
}

func (l LinkDispatcher) RequestCreated(_ context.Context, q domain.ApprovalRequest, participants []domain.Participant) {
	log.Printf("notify: review %s opened, %d reviewers", q.ID, len(participants))
}

func (l LinkDispatcher) DecisionRecorded(_ context.Context, q domain.ApprovalRequest, email, decision string) {
	log.Printf("notify: review %s: %s %s", q.ID, email, decision)
}

// WebhookForwarder tails the activity log and forwards entries to configured
// webhook endpoints. Each endpoint keeps its own cursor; delivery to one
// endpoint never blocks another, and a failed delivery retries on the next
// tick from the same cursor.
type WebhookForwarder struct {
	repo     repo.Repo
	webhooks []config.WebhookConfig
	client   *http.Client
	mu       sync.Mutex
	cursors  map[int]int64
}

// Start launches the forwarder when webhooks are configured.
func Start(r repo.Repo, cfg *config.Config) {
	if cfg == nil || len(cfg.Webhooks) == 0 {
		return
	}
	d := &WebhookForwarder{
		repo:     r,
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: defaultTimeout},
		cursors:  make(map[int]int64),
	}
	go d.run()
}

func (d *WebhookForwarder) run() {
	ticker := time.NewTicker(defaultInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *WebhookForwarder) dispatchAll() {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook)
	}
}

func (d *WebhookForwarder) dispatchWebhook(idx int, hook config.WebhookConfig) {
	ctx := context.Background()
	cursor := d.cursorFor(idx)
	entries, err := d.repo.ActivityAfter(ctx, defaultBatch, cursor)
	if err != nil {
		log.Printf("webhook: fetch activity failed: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	filter := newEventFilter(hook.Events)
	for _, entry := range entries {
		if !filter.match(entry.EventType) {
			d.setCursor(idx, entry.ID)
			continue
		}
		if err := d.post(ctx, hook, entry); err != nil {
			log.Printf("webhook: deliver to %s failed: %v", hook.URL, err)
			return
		}
		d.setCursor(idx, entry.ID)
	}
}

// cursorFor starts new endpoints at the current tail so a fresh hook does not
// replay the full history.
func (d *WebhookForwarder) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.repo.LatestActivityID(context.Background())
	if err != nil {
		log.Printf("webhook: init cursor failed: %v", err)
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *WebhookForwarder) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	UserEmail string          `json:"user_email"`
	UserName  string          `json:"user_name,omitempty"`
	TS        string          `json:"ts"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (d *WebhookForwarder) post(ctx context.Context, hook config.WebhookConfig, entry domain.ActivityEvent) error {
	meta := json.RawMessage([]byte("{}"))
	if entry.MetadataJSON != "" && json.Valid([]byte(entry.MetadataJSON)) {
		meta = json.RawMessage([]byte(entry.MetadataJSON))
	}
	data, err := json.Marshal(webhookEvent{
		ID:        entry.ID,
		Type:      entry.EventType,
		RequestID: entry.RequestID,
		UserEmail: entry.UserEmail,
		UserName:  entry.UserName,
		TS:        entry.CreatedAt,
		Metadata:  meta,
	})
	if err != nil {
		return err
	}
	timeout := defaultTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Approval-Event", entry.EventType)
	req.Header.Set("X-Approval-Delivery", fmt.Sprintf("%d", entry.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Approval-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
