package service

import (
	"alcyxob/shaper/internal/domain"
	"alcyxob/shaper/internal/repository"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultActivationTTL is how long an activation link stays usable.
const DefaultActivationTTL = 72 * time.Hour

// ActivationConfig controls the links mailed to accounts created without a password.
// URL may contain a {token} placeholder; without one the token is appended as a query parameter.
type ActivationConfig struct {
	URL          string
	TTL          time.Duration
	PlatformName string
}

// Activations issues single-use activation tokens and mails them through the outbox.
type Activations struct {
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	cfg              ActivationConfig
	logger           *slog.Logger
	now              func() time.Time
}

func NewActivations(userRepo repository.UserRepository, notificationRepo repository.NotificationRepository, cfg ActivationConfig, logger *slog.Logger) *Activations {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultActivationTTL
	}
	if cfg.PlatformName == "" {
		cfg.PlatformName = "Shaper"
	}
	return &Activations{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		cfg:              cfg,
		logger:           logger,
		now:              time.Now,
	}
}

// Issue replaces the account's activation token and queues the mail carrying it.
func (a *Activations) Issue(ctx context.Context, user *domain.User) error {
	log := a.logger.With("module", "auth", "operation", "issue_activation", "user_id", user.ID.Hex())

	token := uuid.NewString()
	expiresAt := a.now().Add(a.cfg.TTL)
	if err := a.userRepo.SetActivationToken(ctx, user.ID, hashActivationToken(token), expiresAt); err != nil {
		return fmt.Errorf("store activation token: %w", err)
	}

	n := &domain.Notification{
		Kind:       domain.NotificationAccountActivation,
		Recipients: []string{user.Email},
		Subject:    fmt.Sprintf("Activate your %s account", a.cfg.PlatformName),
		Body: fmt.Sprintf("An account was created for %s. Choose a password to sign in:\n\n%s\n\nThe link expires on %s.",
			user.Email, a.activationURL(token), expiresAt.UTC().Format(time.RFC1123)),
	}
	if err := a.notificationRepo.Enqueue(ctx, n); err != nil {
		return fmt.Errorf("enqueue activation mail: %w", err)
	}

	log.Info("activation issued", "outcome", "queued", "expires_at", expiresAt)
	return nil
}

func (a *Activations) activationURL(token string) string {
	if strings.Contains(a.cfg.URL, "{token}") {
		return strings.ReplaceAll(a.cfg.URL, "{token}", token)
	}
	sep := "?"
	if strings.Contains(a.cfg.URL, "?") {
		sep = "&"
	}
	return a.cfg.URL + sep + "token=" + token
}

// hashActivationToken is the form the token is stored and looked up in.
func hashActivationToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
