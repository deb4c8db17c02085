package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"examflow/internal/notification"
	"examflow/internal/transport/http/shared"
	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
	"examflow/pkg/platform/sentinel"
	"examflow/pkg/requestcontext"
)

// Handler serves a recipient's own notifications. There is no cross-user
// access; the recipient is always the authenticated actor.
type Handler struct {
	dispatcher *notification.Dispatcher
	logger     *slog.Logger
}

func New(dispatcher *notification.Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/unread-count", h.unreadCount)
		r.Post("/read-all", h.markAllRead)
		r.Post("/{notificationID}/read", h.markRead)
	})
}

type notificationResponse struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	recipient := requestcontext.UserID(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, err := h.dispatcher.ListByRecipient(r.Context(), recipient, unreadOnly)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list notifications"))
		return
	}

	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse{
			ID:         n.ID.String(),
			DocumentID: n.DocumentID.String(),
			Type:       string(n.Type),
			Message:    n.Message,
			Read:       n.Read,
			CreatedAt:  n.CreatedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	recipient := requestcontext.UserID(r.Context())
	count, err := h.dispatcher.CountUnread(r.Context(), recipient)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "count unread notifications"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	nID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	recipient := requestcontext.UserID(r.Context())
	if err := h.dispatcher.MarkRead(r.Context(), nID, recipient); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "notification not found"))
			return
		}
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "mark notification read"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	recipient := requestcontext.UserID(r.Context())
	flipped, err := h.dispatcher.MarkAllRead(r.Context(), recipient)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "mark all notifications read"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"marked": flipped})
}
