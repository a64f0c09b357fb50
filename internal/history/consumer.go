package history

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/auditgate-platform/auditgate/internal/events"
)

// Uploader is the slice of the report store the consumer needs.
type Uploader interface {
	UploadReport(ctx context.Context, subject, auditID string, payload []byte) (string, error)
}

// Consumer listens for completed audits on NATS and persists them. The
// report upload is best effort; persistence is not.
type Consumer struct {
	repo        *Repository
	consumerMgr *events.ConsumerManager
	reports     Uploader
}

// NewConsumer creates a history Consumer. reports may be nil to skip uploads.
func NewConsumer(repo *Repository, consumerMgr *events.ConsumerManager, reports Uploader) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
		reports:     reports,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, events.StreamEvents, "history-persister", events.SubjectAuditCompleted)
	if err != nil {
		return err
	}

	slog.Info("history consumer started", "consumer", "history-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(events.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("history consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event events.AuditCompleted
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("history consumer: unmarshaling event", "error", err)
		_ = msg.Nak()
		return
	}

	rec := convertEventToRecord(event)

	if c.reports != nil {
		url, err := c.reports.UploadReport(ctx, event.Subject, event.AuditID, msg.Data())
		if err != nil {
			slog.Warn("history consumer: report upload failed",
				"audit_id", event.AuditID, "error", err)
		} else {
			rec.ReportURL = url
		}
	}

	if err := c.repo.Insert(ctx, rec); err != nil {
		slog.Error("history consumer: persisting audit record",
			"error", err, "audit_id", event.AuditID)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("history consumer: persisted audit",
		"audit_id", event.AuditID,
		"requester", event.Requester,
		"subject", event.Subject,
	)
}

func convertEventToRecord(event events.AuditCompleted) *AuditRecord {
	return &AuditRecord{
		ID:          uuid.New(),
		AuditID:     event.AuditID,
		Requester:   event.Requester,
		Subject:     event.Subject,
		Tier:        event.Tier,
		Analyzer:    event.Analyzer,
		RiskScore:   event.RiskScore,
		Findings:    event.Findings,
		TokensUsed:  event.TokensUsed,
		CostSOL:     event.CostSOL,
		FeeLamports: event.FeeLamports,
		CompletedAt: event.CompletedAt,
	}
}
