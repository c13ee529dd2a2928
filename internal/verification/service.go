package verification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/signalix/smsverify/internal/locale"
	"github.com/signalix/smsverify/internal/logging"
	"github.com/signalix/smsverify/internal/provider"
	"github.com/signalix/smsverify/internal/repo"
)

// Service drives the verification lifecycle: admission, send, confirm.
// It keeps no mutable state of its own; attempts live in the store.
type Service struct {
	store    repo.AttemptRepo
	provider provider.DeliveryProvider
	catalog  *locale.Catalog
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, used to simulate the admission window elapsing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a verification service
func NewService(store repo.AttemptRepo, p provider.DeliveryProvider, catalog *locale.Catalog, opts ...Option) *Service {
	s := &Service{
		store:    store,
		provider: p,
		catalog:  catalog,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestVerification admits a new attempt for phone and asks the provider to send a code.
// lang only selects message text.
func (s *Service) RequestVerification(ctx context.Context, phone, lang string) error {
	log := s.logger.With("op", "request_verification", "phone", logging.MaskPhone(phone), "locale", lang)
	now := s.now()

	live, err := s.store.HasLiveAttempt(ctx, phone, now)
	if err != nil {
		// The conditional insert below still refuses a live attempt.
		log.Warn("live attempt check failed", "error", err)
	}
	if live {
		log.Info("verification already pending")
		return s.fail(ErrAlreadyPending, lang, nil)
	}

	id := uuid.New()
	n, err := s.store.InsertAttempt(ctx, id, phone, now)
	if err != nil {
		log.Error("insert attempt failed", "error", err)
		return s.fail(ErrInternal, lang, err)
	}
	if n == 0 {
		log.Info("verification already pending (concurrent request)")
		return s.fail(ErrAlreadyPending, lang, nil)
	}

	// The send and its bookkeeping run to completion even if the caller goes away.
	sendCtx := context.WithoutCancel(ctx)
	res, err := s.provider.SendChallenge(sendCtx, phone)
	if err != nil || !res.Accepted {
		log.Error("provider send failed", "error", err, "provider_status", res.Status)
		if markErr := s.store.MarkSendFailed(sendCtx, phone, id); markErr != nil {
			log.Warn("mark send failed", "error", markErr)
		}
		return s.fail(ErrInternal, lang, err)
	}

	log.Info(s.catalog.Message(lang, locale.KeySMSSendSuccess), "provider_status", res.Status)
	return nil
}

// ConfirmVerification checks code with the provider and, on success, removes the attempt.
func (s *Service) ConfirmVerification(ctx context.Context, phone, code, lang string) error {
	log := s.logger.With("op", "confirm_verification", "phone", logging.MaskPhone(phone), "locale", lang)

	checkCtx := context.WithoutCancel(ctx)
	res, err := s.provider.CheckChallenge(checkCtx, phone, code)
	if err != nil || !res.Verified {
		log.Info("code rejected", "error", err, "provider_status", res.Status)
		return s.fail(ErrVerificationFailed, lang, err)
	}

	n, err := s.store.DeleteAttempt(checkCtx, phone)
	if err != nil || n == 0 {
		// Provider and store disagree; nothing here can repair it.
		log.Error("delete attempt after approval failed", "error", err, "rows", n)
		return s.fail(ErrInternal, lang, err)
	}

	log.Info(s.catalog.Message(lang, locale.KeySMSVerificationSuccess))
	return nil
}

func (s *Service) fail(kind error, lang string, cause error) error {
	key := MessageKey(kind)
	return &Error{
		Kind:    kind,
		Key:     key,
		Message: s.catalog.Message(lang, key),
		cause:   cause,
	}
}
