package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/fslexpress/golang_services/internal/core_domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/app"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

const (
	msgOTPSent       = "OTP sent successfully"
	msgOTPFailed     = "Failed to send OTP"
	msgInvalidBody   = "Invalid request payload"
	msgTooManyOTPReq = "Too many OTP requests, try again later."
	maxOTPBodyBytes  = 16 << 10
)

// OTPSender is implemented by the OTP service.
type OTPSender interface {
	SendOTP(ctx context.Context, req app.OTPRequest) (*domain.Receipt, error)
}

type OTPHandler struct {
	otp      OTPSender
	validate *validator.Validate
	limiter  *RateLimiter
	logger   *slog.Logger
}

// NewOTPHandler builds the handler. A nil limiter disables rate limiting.
func NewOTPHandler(otp OTPSender, validate *validator.Validate, limiter *RateLimiter, logger *slog.Logger) *OTPHandler {
	return &OTPHandler{
		otp:      otp,
		validate: validate,
		limiter:  limiter,
		logger:   logger.With("handler", "otp"),
	}
}

func (h *OTPHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, h.logger, http.StatusTooManyRequests, SendOTPErrorResponse{Message: msgTooManyOTPReq})
			}))
		}
		r.Post("/send-otp", h.handleSendOTP)
	})
}

func (h *OTPHandler) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req SendOTPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOTPBodyBytes)).Decode(&req); err != nil {
		logger.WarnContext(ctx, "Failed to decode OTP request", "error", err)
		writeJSON(w, logger, http.StatusBadRequest, SendOTPErrorResponse{Message: msgInvalidBody})
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.WarnContext(ctx, "OTP request failed validation", "error", err)
		writeJSON(w, logger, http.StatusBadRequest, SendOTPErrorResponse{Message: app.MsgMissingOTPFields})
		return
	}

	receipt, err := h.otp.SendOTP(ctx, app.OTPRequest{To: req.To, OTP: req.OTP, Subject: req.Subject})
	if err != nil {
		h.writeOTPError(w, r, logger, err)
		return
	}

	logger.InfoContext(ctx, "OTP sent", "channel", receipt.Channel, "provider_message_id", receipt.ProviderMessageID)
	writeJSON(w, logger, http.StatusOK, SendOTPResponse{
		Success:   true,
		MessageID: receipt.ProviderMessageID,
		Message:   msgOTPSent,
		Channel:   receipt.Channel,
	})
}

func (h *OTPHandler) writeOTPError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()
	kind := core_domain.KindOf(err)
	status := statusForKind(kind)

	if status == http.StatusBadRequest {
		logger.WarnContext(ctx, "OTP request rejected", "kind", kind, "error", err)
		writeJSON(w, logger, status, SendOTPErrorResponse{Message: clientMessage(err)})
		return
	}

	logger.ErrorContext(ctx, "OTP send failed", "kind", kind, "error", err)
	resp := SendOTPErrorResponse{
		Message: msgOTPFailed,
		Error:   err.Error(),
	}
	var derr *domain.DeliveryError
	if errors.As(err, &derr) {
		resp.Hint = derr.Hint()
		resp.Attempts = toAttemptSummaries(derr.Attempts)
	} else {
		resp.Hint = core_domain.HintOf(err)
	}
	writeJSON(w, logger, status, resp)
}
