package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"dinetab-order-services/internal/auth"
	"dinetab-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (h *Handler) StaffLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var (
		staffID      int64
		name         string
		role         auth.StaffRole
		passwordHash string
	)
	err := h.DB.QueryRow(ctx, `
		select id, name, role, password_hash from staff where phone = $1
	`, strings.TrimSpace(body.Phone)).Scan(&staffID, &name, &role, &passwordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Wrong phone or password")
			return
		}
		h.writeError(w, err)
		return
	}
	if !auth.CheckPassword(passwordHash, body.Password) {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Wrong phone or password")
		return
	}

	token, err := auth.IssueAccessToken(staffID, role, name, h.Config.JWTSecret, h.Config.JWTExpirySeconds)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, map[string]any{
		"token": token,
		"staff": map[string]any{
			"id":   staffID,
			"name": name,
			"role": role,
		},
	})
}

type createStaffRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handler) StaffCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	role := auth.StaffRole(strings.ToUpper(strings.TrimSpace(body.Role)))
	if !auth.ValidRole(role) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown role")
		return
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Phone) == "" || len(body.Password) < 6 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name, phone and a password of 6+ chars are required")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var staffID int64
	if err := h.DB.QueryRow(ctx, `
		insert into staff (name, phone, role, password_hash) values ($1,$2,$3,$4)
		returning id
	`, strings.TrimSpace(body.Name), strings.TrimSpace(body.Phone), role, hash).Scan(&staffID); err != nil {
		response.Error(w, http.StatusConflict, "DUPLICATE_KEY", "Phone already registered")
		return
	}

	response.Created(w, map[string]any{"id": staffID})
}
