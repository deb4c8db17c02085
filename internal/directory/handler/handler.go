package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"examflow/internal/directory"
	"examflow/internal/transport/http/shared"
	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

type Handler struct {
	service *directory.Service
	logger  *slog.Logger
}

func New(svc *directory.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/departments", func(r chi.Router) {
		r.Post("/", h.createDepartment)
		r.Get("/", h.listDepartments)
		r.Route("/{departmentID}", func(r chi.Router) {
			r.Get("/", h.getDepartment)
			r.Put("/approver", h.assignApprover)
		})
	})
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.registerUser)
		r.Get("/{userID}", h.getUser)
	})
}

type departmentResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	ApproverID *string   `json:"approver_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toDepartmentResponse(dept *directory.Department) departmentResponse {
	resp := departmentResponse{
		ID:        dept.ID.String(),
		Name:      dept.Name,
		Code:      dept.Code,
		CreatedAt: dept.CreatedAt,
		UpdatedAt: dept.UpdatedAt,
	}
	if dept.ApproverID != nil {
		approver := dept.ApproverID.String()
		resp.ApproverID = &approver
	}
	return resp
}

type createDepartmentRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	var req createDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	dept, err := h.service.CreateDepartment(r.Context(), req.Name, req.Code)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toDepartmentResponse(dept))
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.service.ListDepartments(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]departmentResponse, 0, len(depts))
	for _, dept := range depts {
		out = append(out, toDepartmentResponse(dept))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"departments": out})
}

func (h *Handler) getDepartment(w http.ResponseWriter, r *http.Request) {
	deptID, err := id.ParseDepartmentID(chi.URLParam(r, "departmentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	dept, err := h.service.GetDepartment(r.Context(), deptID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDepartmentResponse(dept))
}

type assignApproverRequest struct {
	ApproverID string `json:"approver_id"`
}

func (h *Handler) assignApprover(w http.ResponseWriter, r *http.Request) {
	deptID, err := id.ParseDepartmentID(chi.URLParam(r, "departmentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req assignApproverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	approverID, err := id.ParseUserID(req.ApproverID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	dept, err := h.service.AssignApprover(r.Context(), deptID, approverID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDepartmentResponse(dept))
}

type userResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	DepartmentID *string `json:"department_id,omitempty"`
}

func toUserResponse(user *directory.User) userResponse {
	resp := userResponse{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role.String(),
	}
	if user.DepartmentID != nil {
		dept := user.DepartmentID.String()
		resp.DepartmentID = &dept
	}
	return resp
}

type registerUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id"`
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var deptID *id.DepartmentID
	if req.DepartmentID != "" {
		parsed, err := id.ParseDepartmentID(req.DepartmentID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		deptID = &parsed
	}
	user, err := h.service.RegisterUser(r.Context(), req.Name, req.Email, role, deptID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
