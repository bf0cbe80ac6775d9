package notify

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RecipientResolver supplies recipients for notifications queued without any.
type RecipientResolver func(ctx context.Context) ([]string, error)

// AdminRecipients resolves to every admin account's email address.
func AdminRecipients(users repository.UserRepository) RecipientResolver {
	return func(ctx context.Context) ([]string, error) {
		admins, err := users.GetByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, err
		}
		emails := make([]string, 0, len(admins))
		for _, a := range admins {
			emails = append(emails, a.Email)
		}
		return emails, nil
	}
}

// WorkerConfig tunes the outbox loop.
type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	ClaimTTL    time.Duration
	MaxAttempts int
}

// Worker drains the notification outbox: claim, send, then mark delivered,
// retry later, or dead-letter after MaxAttempts.
type Worker struct {
	logger     *slog.Logger
	outbox     repository.NotificationRepository
	sender     Sender
	recipients RecipientResolver
	cfg        WorkerConfig
	now        func() time.Time
}

func NewWorker(logger *slog.Logger, outbox repository.NotificationRepository, sender Sender, recipients RecipientResolver, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Worker{
		logger:     logger,
		outbox:     outbox,
		sender:     sender,
		recipients: recipients,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run processes the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce handles up to BatchSize notifications and returns how many were delivered.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	claimToken := uuid.NewString()
	delivered := 0

	for i := 0; i < w.cfg.BatchSize; i++ {
		now := w.now().UTC()
		n, err := w.outbox.ClaimNext(ctx, claimToken, now, now.Add(w.cfg.ClaimTTL))
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				w.logger.ErrorContext(ctx, "outbox claim failed",
					"module", "notify",
					"operation", "claim",
					"outcome", "failure",
					"error", err,
				)
			}
			break
		}
		if w.deliver(ctx, claimToken, n) {
			delivered++
		}
	}
	return delivered
}

func (w *Worker) deliver(ctx context.Context, claimToken string, n *domain.Notification) bool {
	to := n.Recipients
	var err error
	if len(to) == 0 && w.recipients != nil {
		to, err = w.recipients(ctx)
	}
	if err == nil && len(to) == 0 {
		err = errors.New("no recipients")
	}
	if err == nil {
		err = w.sender.Send(ctx, Message{To: to, Subject: n.Subject, Body: n.Body})
	}

	if err == nil {
		if markErr := w.outbox.MarkDelivered(ctx, n.ID, claimToken, w.now().UTC()); markErr != nil {
			w.logger.WarnContext(ctx, "notification sent but not marked delivered",
				"module", "notify",
				"operation", "mark_delivered",
				"notification_id", n.ID.Hex(),
				"error", markErr,
			)
		}
		return true
	}

	// Attempts was already incremented by the claim.
	dead := n.Attempts >= w.cfg.MaxAttempts
	retryAt := w.now().UTC().Add(w.backoff(n.Attempts))
	if markErr := w.outbox.MarkFailed(ctx, n.ID, claimToken, err.Error(), dead, retryAt); markErr != nil {
		w.logger.WarnContext(ctx, "could not record notification failure",
			"module", "notify",
			"operation", "mark_failed",
			"notification_id", n.ID.Hex(),
			"error", markErr,
		)
	}

	level := slog.LevelWarn
	msg := "notification delivery failed, retry scheduled"
	if dead {
		level = slog.LevelError
		msg = "notification moved to dead letter"
	}
	w.logger.Log(ctx, level, msg,
		"module", "notify",
		"operation", "send",
		"outcome", "failure",
		"notification_id", n.ID.Hex(),
		"kind", n.Kind,
		"attempts", n.Attempts,
		"error", err,
	)
	return false
}

// backoff doubles the interval per attempt, capped at one hour.
func (w *Worker) backoff(attempts int) time.Duration {
	d := w.cfg.Interval
	for i := 1; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
