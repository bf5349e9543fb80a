package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"food-order-api/middleware"
	"food-order-api/models"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// selfServiceRoles are the roles anyone may sign up for. Admin accounts are
// provisioned by the operator at startup.
var selfServiceRoles = map[models.UserRole]bool{
	models.RoleCustomer:   true,
	models.RoleRestaurant: true,
}

type RegisterRequest struct {
	Name     string          `json:"name" binding:"required"`
	Email    string          `json:"email" binding:"required,email"`
	Password string          `json:"password" binding:"required,min=6"`
	Role     models.UserRole `json:"role" binding:"required"`
	Phone    string          `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func newAccount(name, email, password, phone string, role models.UserRole) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	return models.User{
		Name:         name,
		Email:        store.NormalizeEmail(email),
		PasswordHash: string(hash),
		Role:         role,
		Phone:        phone,
	}, nil
}

// Register signs up a customer or restaurant owner and returns a session.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin accounts cannot be self-registered"})
		return
	}
	if !selfServiceRoles[req.Role] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role. Must be: customer or restaurant"})
		return
	}

	user, err := newAccount(req.Name, req.Email, req.Password, req.Phone, req.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		h.respondError(c, err)
		return
	}
	h.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	h.issueSession(c, http.StatusCreated, "Account created successfully", user)
}

// Login checks credentials and returns a session.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.store.UserByEmail(c.Request.Context(), req.Email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	}
	if err != nil {
		h.logger.Debug("login rejected", zap.String("email", store.NormalizeEmail(req.Email)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	h.issueSession(c, http.StatusOK, "Login successful", user)
}

func (h *Handler) issueSession(c *gin.Context, status int, message string, user models.User) {
	token, err := middleware.GenerateToken(&user, h.jwtSecret)
	if err != nil {
		h.respondError(c, fmt.Errorf("sign token: %w", err))
		return
	}
	c.JSON(status, gin.H{
		"message":    message,
		"token":      token,
		"expires_in": int(middleware.TokenTTL.Seconds()),
		"user":       user,
	})
}

// GetProfile returns the authenticated user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.store.FetchUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ProvisionAdmin makes sure an admin account exists for email. An existing
// account is left untouched.
func (h *Handler) ProvisionAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New("admin email and password are both required")
	}
	admin, err := newAccount("Administrator", email, password, "", models.RoleAdmin)
	if err != nil {
		return err
	}
	created, err := h.store.EnsureUser(ctx, &admin)
	if err != nil {
		return err
	}
	if !created && admin.Role != models.RoleAdmin {
		return fmt.Errorf("%s is registered with role %s", admin.Email, admin.Role)
	}
	return nil
}
