package user_api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/users"
	"ms-vitotrips/internal/utils"
)

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type Handler struct {
	Service UserService
	Logger  *logger.Logger
}

func NewHandler(svc UserService, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

// MountAuth registers /login and /register.
func (h *Handler) MountAuth(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
}

func (h *Handler) MountUsers(r chi.Router) {
	r.Post("/", h.CreateUser)
	r.Get("/", h.ListUsers)
	r.Get("/role/{role}", h.ListUsersByRole)
	r.Get("/{id}", h.GetUser)
	r.Delete("/{id}", h.DeleteUser)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	resp, err := h.Service.Register(r.Context(), req)
	if err != nil {
		utils.WriteAppError(w, "Registration failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "User registered", resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	resp, err := h.Service.Login(r.Context(), req)
	if errors.Is(err, users.ErrInvalidCredentials) {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid credentials", err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("AUTH", "login failed: "+err.Error())
		utils.WriteAppError(w, "Login failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Login successful", resp)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	user, err := h.Service.CreateUser(r.Context(), req)
	if err != nil {
		utils.WriteAppError(w, "Failed to create user", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "User created", user)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListUsers(r.Context())
	if err != nil {
		utils.WriteAppError(w, "Failed to list users", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Users retrieved", list)
}

func (h *Handler) ListUsersByRole(w http.ResponseWriter, r *http.Request) {
	role := models.Role(chi.URLParam(r, "role"))
	list, err := h.Service.ListUsersByRole(r.Context(), role)
	if err != nil {
		utils.WriteAppError(w, "Failed to list users", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Users retrieved", list)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAppError(w, "Failed to fetch user", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "User retrieved", user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		utils.WriteAppError(w, "Failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
