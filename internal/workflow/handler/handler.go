// Package handler exposes the review pipeline over HTTP. Routes assume the
// auth middleware has already placed the acting user on the context.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"examflow/internal/blob"
	"examflow/internal/transport/http/shared"
	"examflow/internal/workflow/models"
	"examflow/internal/workflow/service"
	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
	"examflow/pkg/platform/sentinel"
	"examflow/pkg/requestcontext"
)

type Handler struct {
	service *service.Service
	blobs   blob.Store
	logger  *slog.Logger
}

func New(svc *service.Service, blobs blob.Store, logger *slog.Logger) *Handler {
	return &Handler{service: svc, blobs: blobs, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.createDocument)
		r.Get("/", h.listOwned)
		r.Get("/pending", h.listPending)
		r.Route("/{documentID}", func(r chi.Router) {
			r.Get("/", h.getDocument)
			r.Post("/transitions", h.transition)
			r.Get("/versions", h.listVersions)
			r.Get("/versions/{versionNumber}/content", h.downloadContent)
			r.Get("/feedback", h.listFeedback)
		})
	})
}

// RegisterUploads mounts the binary upload route. It is registered outside
// the JSON content-type guard because uploads carry arbitrary content types.
func (h *Handler) RegisterUploads(r chi.Router) {
	r.Post("/uploads", h.uploadContent)
}

// uploadContent stages exam content in the blob store ahead of a create or
// upload_new_version call. The returned locator goes into the version
// payload; the pipeline itself never touches content bytes.
func (h *Handler) uploadContent(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "upload exceeds the size limit"))
		return
	}
	if len(content) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "upload body cannot be empty"))
		return
	}
	contentType := r.Header.Get("Content-Type")
	locator, err := h.blobs.Put(r.Context(), content, contentType)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "store upload"))
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]string{"content_locator": locator})
}

const maxUploadBytes = 32 << 20

// downloadContent streams the staged bytes for one version. Authorization
// follows the document's read rules; the locator never leaves the server.
func (h *Handler) downloadContent(w http.ResponseWriter, r *http.Request) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "versionNumber"))
	if err != nil || number < 1 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "version number must be a positive integer"))
		return
	}

	actor := requestcontext.UserID(r.Context())
	v, err := h.service.GetVersion(r.Context(), docID, number, actor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	content, contentType, err := h.blobs.Get(r.Context(), v.ContentLocator)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "content not found"))
			return
		}
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "fetch content"))
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

type createDocumentRequest struct {
	Title          string                    `json:"title"`
	Description    string                    `json:"description"`
	InitialVersion *models.NewVersionPayload `json:"initial_version"`
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	actor := requestcontext.UserID(r.Context())
	doc, err := h.service.CreateDocument(r.Context(), actor, req.Title, req.Description, req.InitialVersion)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) listOwned(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.UserID(r.Context())
	docs, err := h.service.ListForOwner(r.Context(), actor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.UserID(r.Context())
	docs, err := h.service.ListPendingFor(r.Context(), actor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	actor := requestcontext.UserID(r.Context())
	doc, err := h.service.GetDocument(r.Context(), docID, actor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, doc)
}

type transitionRequest struct {
	Action           string                    `json:"action"`
	ExpectedRevision int64                     `json:"expected_revision"`
	Comments         string                    `json:"comments"`
	NewVersion       *models.NewVersionPayload `json:"new_version"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.service.Transition(r.Context(), models.TransitionRequest{
		DocumentID:       docID,
		Action:           action,
		ActorID:          requestcontext.UserID(r.Context()),
		ExpectedRevision: req.ExpectedRevision,
		Comments:         req.Comments,
		NewVersion:       req.NewVersion,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

type versionResponse struct {
	VersionNumber  int       `json:"version_number"`
	ContentLocator string    `json:"content_locator"`
	KeyHandle      string    `json:"key_handle"`
	UploadedBy     string    `json:"uploaded_by"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	actor := requestcontext.UserID(r.Context())
	versions, err := h.service.GetVersionHistory(r.Context(), docID, actor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionResponse{
			VersionNumber:  v.VersionNumber,
			ContentLocator: v.ContentLocator,
			KeyHandle:      v.KeyHandle,
			UploadedBy:     v.UploadedBy.String(),
			Description:    v.Description,
			CreatedAt:      v.CreatedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"versions": out})
}

type feedbackResponse struct {
	ID            string    `json:"id"`
	VersionNumber int       `json:"version_number"`
	ReviewerID    string    `json:"reviewer_id"`
	ReviewerRole  string    `json:"reviewer_role"`
	Outcome       string    `json:"outcome"`
	Comments      string    `json:"comments"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *Handler) listFeedback(w http.ResponseWriter, r *http.Request) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	actor := requestcontext.UserID(r.Context())
	entries, err := h.service.GetFeedback(r.Context(), docID, actor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]feedbackResponse, 0, len(entries))
	for _, fb := range entries {
		out = append(out, feedbackResponse{
			ID:            fb.ID.String(),
			VersionNumber: fb.VersionNumber,
			ReviewerID:    fb.ReviewerID.String(),
			ReviewerRole:  fb.ReviewerRole.String(),
			Outcome:       string(fb.Outcome),
			Comments:      fb.Comments,
			CreatedAt:     fb.CreatedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"feedback": out})
}
