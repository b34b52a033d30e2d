package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/smsflow/smsflow/internal/dispatch/app"
	"github.com/smsflow/smsflow/internal/dispatch/domain"
	"github.com/smsflow/smsflow/internal/transport/http/middleware"
)

// Dispatcher is the slice of the dispatch service this handler consumes.
type Dispatcher interface {
	Dispatch(ctx context.Context, destinations []string, body string, userID *int64) (*app.DispatchSummary, error)
	Resend(ctx context.Context, messageID, userID int64) (*app.DispatchSummary, error)
	GetMessage(ctx context.Context, messageID, userID int64) (*domain.Message, error)
}

// MessageHandler owns the caller-side half of the dispatch contract:
// it validates, normalizes and deduplicates input before the dispatch
// service sees it, and serializes DispatchSummary back out.
type MessageHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewMessageHandler(dispatcher Dispatcher, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		dispatcher: dispatcher,
		logger:     logger.With("handler", "message"),
	}
}

// RegisterRoutes registers message routes with the given router.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/messages/dispatch", h.handleDispatch)
	r.Post("/messages/{messageID}/resend", h.handleResend)
	r.Get("/messages/{messageID}", h.handleGetMessage)
}

func (h *MessageHandler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	authUser, ok := middleware.UserFromContext(ctx)
	if !ok {
		h.jsonError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	recipients, err := normalizeRecipients(req.Recipients)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	if utf8.RuneCountInString(req.Message) > domain.MaxBodyLength {
		h.jsonError(w, "message exceeds the 160 character single-segment budget", http.StatusBadRequest)
		return
	}

	summary, err := h.dispatcher.Dispatch(ctx, recipients, req.Message, &authUser.ID)
	if err != nil {
		logger.ErrorContext(ctx, "dispatch failed", "error", err, "recipients", len(recipients))
		h.jsonError(w, "Failed to dispatch message", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *MessageHandler) handleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	authUser, ok := middleware.UserFromContext(ctx)
	if !ok {
		h.jsonError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid message id", http.StatusBadRequest)
		return
	}

	summary, err := h.dispatcher.Resend(ctx, messageID, authUser.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMessageNotFound):
			h.jsonError(w, "Message not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrNothingToResend):
			h.jsonError(w, "Message has no failed recipients to resend", http.StatusConflict)
		default:
			logger.ErrorContext(ctx, "resend failed", "error", err, "message_id", messageID)
			h.jsonError(w, "Failed to resend message", http.StatusInternalServerError)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *MessageHandler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	authUser, ok := middleware.UserFromContext(ctx)
	if !ok {
		h.jsonError(w, "User not authenticated", http.StatusUnauthorized)
		return
	}

	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid message id", http.StatusBadRequest)
		return
	}

	msg, err := h.dispatcher.GetMessage(ctx, messageID, authUser.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			h.jsonError(w, "Message not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "get message failed", "error", err, "message_id", messageID)
		h.jsonError(w, "Failed to load message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, MessageResponse{
		ID:              msg.ID,
		Body:            msg.Body,
		TotalRecipients: msg.TotalRecipients,
		SuccessfulSends: msg.SuccessfulSends,
		FailedSends:     msg.FailedSends,
		DeliveryRate:    msg.DeliveryRate,
		CreatedAt:       msg.CreatedAt,
	})
}

// normalizeRecipients trims, drops empties, and deduplicates while
// preserving first-seen order. Deduplication happens here because the
// dispatch service trusts its inputs and counts every destination it is
// given.
func normalizeRecipients(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.New("recipients must not be empty")
	}
	seen := make(map[string]struct{}, len(raw))
	recipients := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			return nil, errors.New("recipients must not contain empty values")
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		recipients = append(recipients, r)
	}
	return recipients, nil
}

func (h *MessageHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *MessageHandler) jsonError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
