package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/signalix/smsverify/internal/locale"
	"github.com/signalix/smsverify/internal/logging"
	"github.com/signalix/smsverify/internal/middleware"
	"github.com/signalix/smsverify/internal/phone"
	"github.com/signalix/smsverify/internal/verification"
)

// Verifier is the verification lifecycle as seen by the RPC surface.
type Verifier interface {
	RequestVerification(ctx context.Context, phone, lang string) error
	ConfirmVerification(ctx context.Context, phone, code, lang string) error
}

// VerificationHandler serves the request and confirm RPCs.
type VerificationHandler struct {
	svc          Verifier
	resolver     *locale.Resolver
	catalog      *locale.Catalog
	ipLimiter    middleware.Limiter
	phoneLimiter middleware.Limiter
	logger       *slog.Logger
}

// NewVerificationHandler creates a new verification handler.
// ipLimiter caps both RPCs per client IP; phoneLimiter caps confirm attempts per number.
func NewVerificationHandler(
	svc Verifier,
	catalog *locale.Catalog,
	ipLimiter middleware.Limiter,
	phoneLimiter middleware.Limiter,
	logger *slog.Logger,
) *VerificationHandler {
	if ipLimiter == nil {
		ipLimiter = middleware.NoLimit{}
	}
	if phoneLimiter == nil {
		phoneLimiter = middleware.NoLimit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationHandler{
		svc:          svc,
		resolver:     locale.NewResolver(catalog),
		catalog:      catalog,
		ipLimiter:    ipLimiter,
		phoneLimiter: phoneLimiter,
		logger:       logger,
	}
}

// maxBodyBytes bounds RPC request bodies; both carry two short strings.
const maxBodyBytes = 4 << 10

// requestVerificationRequest is the request body for POST /v1/verifications
type requestVerificationRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// confirmVerificationRequest is the request body for POST /v1/verifications/confirm
type confirmVerificationRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

// errorResponse is the JSON body of every failed RPC
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleRequestVerification handles POST /v1/verifications
func (h *VerificationHandler) HandleRequestVerification(w http.ResponseWriter, r *http.Request) {
	lang, ok := h.resolveLanguage(w, r)
	if !ok {
		return
	}

	var req requestVerificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, lang, locale.KeyInvalidRequestBody)
		return
	}

	number, err := phone.Normalize(strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, lang, locale.KeyInvalidPhoneNumber)
		return
	}

	if !h.ipLimiter.Allow(r.Context(), middleware.GetIPKey(r)) {
		h.respondWithError(w, http.StatusTooManyRequests, lang, locale.KeyRateLimitExceeded)
		return
	}

	if err := h.svc.RequestVerification(r.Context(), number, lang); err != nil {
		h.respondWithVerificationError(w, lang, number, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleConfirmVerification handles POST /v1/verifications/confirm
func (h *VerificationHandler) HandleConfirmVerification(w http.ResponseWriter, r *http.Request) {
	lang, ok := h.resolveLanguage(w, r)
	if !ok {
		return
	}

	var req confirmVerificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, lang, locale.KeyInvalidRequestBody)
		return
	}

	number, err := phone.Normalize(strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, lang, locale.KeyInvalidPhoneNumber)
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		h.respondWithError(w, http.StatusBadRequest, lang, locale.KeyCodeRequired)
		return
	}

	if !h.ipLimiter.Allow(r.Context(), middleware.GetIPKey(r)) ||
		!h.phoneLimiter.Allow(r.Context(), middleware.GetPhoneKey(number)) {
		h.respondWithError(w, http.StatusTooManyRequests, lang, locale.KeyRateLimitExceeded)
		return
	}

	if err := h.svc.ConfirmVerification(r.Context(), number, code, lang); err != nil {
		h.respondWithVerificationError(w, lang, number, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveLanguage rejects the request before any store or provider access when the locale is bad.
func (h *VerificationHandler) resolveLanguage(w http.ResponseWriter, r *http.Request) (string, bool) {
	lang, err := h.resolver.FromRequest(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, locale.DefaultLanguage, locale.KeyInvalidLanguageCode)
		return "", false
	}
	return lang, true
}

func (h *VerificationHandler) respondWithVerificationError(w http.ResponseWriter, lang, number string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("verification rpc failed", "phone", logging.MaskPhone(number), "error", err)
	}

	var verr *verification.Error
	if errors.As(err, &verr) {
		writeJSON(w, status, errorResponse{Error: verr.Key, Message: verr.Message})
		return
	}
	h.respondWithError(w, status, lang, verification.MessageKey(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, verification.ErrInvalidLanguageCode):
		return http.StatusBadRequest
	case errors.Is(err, verification.ErrAlreadyPending):
		return http.StatusConflict
	case errors.Is(err, verification.ErrVerificationFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError sends a JSON error response translated into lang
func (h *VerificationHandler) respondWithError(w http.ResponseWriter, statusCode int, lang, key string) {
	writeJSON(w, statusCode, errorResponse{Error: key, Message: h.catalog.Message(lang, key)})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
