// internal/audit/recorder.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"builder-licensing/internal/common/database"
	"builder-licensing/internal/common/logger"

	"github.com/google/uuid"
)

// Recorder captures lifecycle events for offline analysis. Recording is
// best-effort: the state machine's correctness never depends on the audit
// trail, so failures are logged and swallowed.
type Recorder interface {
	Transition(ctx context.Context, key, from, to string, at time.Time)
	Issued(ctx context.Context, key, tier string, at time.Time)
	Revoked(ctx context.Context, key, reason string, at time.Time)
}

type event struct {
	Kind      string    `json:"kind"`
	Key       string    `json:"licenseKey"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Tier      string    `json:"tier,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ESRecorder indexes events into Elasticsearch.
type ESRecorder struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewESRecorder(es *database.ElasticsearchClient, index string, log logger.Logger) *ESRecorder {
	if index == "" {
		index = "license-events"
	}
	return &ESRecorder{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

func (r *ESRecorder) Transition(ctx context.Context, key, from, to string, at time.Time) {
	r.record(ctx, event{Kind: "transition", Key: key, From: from, To: to, Timestamp: at})
}

func (r *ESRecorder) Issued(ctx context.Context, key, tier string, at time.Time) {
	r.record(ctx, event{Kind: "issued", Key: key, Tier: tier, Timestamp: at})
}

func (r *ESRecorder) Revoked(ctx context.Context, key, reason string, at time.Time) {
	r.record(ctx, event{Kind: "revoked", Key: key, Reason: reason, Timestamp: at})
}

func (r *ESRecorder) record(ctx context.Context, ev event) {
	body, err := json.Marshal(ev)
	if err != nil {
		r.logger.WithError(err).Warn("failed to marshal audit event", nil)
		return
	}

	res, err := r.es.Client.Index(
		r.index,
		bytes.NewReader(body),
		r.es.Client.Index.WithContext(ctx),
		r.es.Client.Index.WithDocumentID(uuid.New().String()),
	)
	if err != nil {
		r.logger.WithError(err).Warn("failed to index audit event", map[string]interface{}{
			"kind": ev.Kind,
			"key":  ev.Key,
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		r.logger.Warn("audit event rejected", map[string]interface{}{
			"kind":   ev.Kind,
			"key":    ev.Key,
			"status": res.Status(),
		})
	}
}

// NopRecorder discards all events. Used when Elasticsearch is not
// configured and in tests.
type NopRecorder struct{}

func (NopRecorder) Transition(ctx context.Context, key, from, to string, at time.Time) {}
func (NopRecorder) Issued(ctx context.Context, key, tier string, at time.Time)         {}
func (NopRecorder) Revoked(ctx context.Context, key, reason string, at time.Time)      {}
