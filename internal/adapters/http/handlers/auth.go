package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/mnemos/mnemos/internal/adapters/http/dto"
	"github.com/mnemos/mnemos/internal/adapters/http/middleware"
	"github.com/mnemos/mnemos/internal/auth"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/ports"
)

// AuthHandler serves registration, login and account management.
type AuthHandler struct {
	users    ports.UserRepository
	tokens   *auth.TokenManager
	ids      ports.IDGenerator
	memories ports.MemoryService
	tokenTTL int // seconds, echoed in login responses
}

func NewAuthHandler(users ports.UserRepository, tokens *auth.TokenManager, ids ports.IDGenerator, memories ports.MemoryService, tokenTTLSeconds int) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tokens:   tokens,
		ids:      ids,
		memories: memories,
		tokenTTL: tokenTTLSeconds,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[registerRequest](r, w)
	if !ok {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		dto.Error(w, "缺少必需字段：username, email, password", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := models.ValidateUsername(username); err != nil {
		dto.Error(w, fmt.Sprintf("用户名长度必须在%d-%d个字符之间", models.MinUsernameLength, models.MaxUsernameLength), "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}
	if err := models.ValidateEmail(email); err != nil {
		dto.Error(w, "邮箱格式无效", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}
	if err := models.ValidatePassword(req.Password); err != nil {
		dto.Error(w, fmt.Sprintf("密码长度至少%d个字符", models.MinPasswordLength), "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	exists, err := h.users.ExistsByUsernameOrEmail(r.Context(), username, email)
	if err != nil {
		dto.Error(w, "注册失败，请稍后重试", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	if exists {
		log.Printf("[auth] register conflict: username=%s", username)
		dto.Error(w, "用户名或邮箱已存在", "USERNAME_EXISTS", http.StatusConflict)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		dto.Error(w, "注册失败，请稍后重试", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	user := models.NewUser(h.ids.GenerateUserID(), username, email, hash)
	if err := h.users.Create(r.Context(), user); err != nil {
		dto.Error(w, "注册失败，请稍后重试", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	log.Printf("[auth] user registered: user_id=%s, username=%s", user.ID, user.Username)
	dto.Success(w, map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
	}, "注册成功")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[loginRequest](r, w)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		dto.Error(w, "缺少必需字段：username, password", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByUsernameOrEmail(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		dto.Error(w, "用户名或密码错误", "INVALID_CREDENTIALS", http.StatusUnauthorized)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		dto.Error(w, "用户名或密码错误", "INVALID_CREDENTIALS", http.StatusUnauthorized)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		dto.Error(w, "登录失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	// Memory adapter warm-up is best effort; login never fails on it.
	if h.memories != nil {
		go h.memories.WarmUp(nil)
	}

	dto.Success(w, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   h.tokenTTL,
		"user": map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	}, "登录成功")
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	token, err := h.tokens.Issue(userID)
	if err != nil {
		dto.Error(w, "令牌刷新失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	dto.Success(w, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   h.tokenTTL,
	}, "令牌刷新成功")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		dto.Error(w, "用户不存在", "NOT_FOUND", http.StatusNotFound)
		return
	}
	dto.Success(w, user, "")
}

type updateMeRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[updateMeRequest](r, w)
	if !ok {
		return
	}
	if req.Username == nil && req.Email == nil {
		dto.Error(w, "没有要更新的字段", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		dto.Error(w, "用户不存在", "NOT_FOUND", http.StatusNotFound)
		return
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if err := models.ValidateUsername(username); err != nil {
			dto.Error(w, fmt.Sprintf("用户名长度必须在%d-%d个字符之间", models.MinUsernameLength, models.MaxUsernameLength), "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		user.Username = username
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if err := models.ValidateEmail(email); err != nil {
			dto.Error(w, "邮箱格式无效", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		user.Email = email
	}

	if err := h.users.Update(r.Context(), user); err != nil {
		dto.Error(w, "更新失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, user, "用户信息更新成功")
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[updatePasswordRequest](r, w)
	if !ok {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		dto.Error(w, "缺少必需字段：old_password, new_password", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}
	if err := models.ValidatePassword(req.NewPassword); err != nil {
		dto.Error(w, fmt.Sprintf("密码长度至少%d个字符", models.MinPasswordLength), "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		dto.Error(w, "用户不存在", "NOT_FOUND", http.StatusNotFound)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.OldPassword); err != nil {
		dto.Error(w, "旧密码错误", "INVALID_CREDENTIALS", http.StatusUnauthorized)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		dto.Error(w, "密码更新失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash

	if err := h.users.Update(r.Context(), user); err != nil {
		dto.Error(w, "密码更新失败", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	dto.Success(w, nil, "密码更新成功")
}
