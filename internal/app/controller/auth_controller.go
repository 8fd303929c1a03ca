package controller

import (
	"net/http"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	apperrors "github.com/Baby-jesuset/FBGENERALHW-sj/internal/errors"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{
		authService: authService,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	City     *string `json:"city"`
}

// Register handles user registration
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.InvalidBody(c, err)
		return
	}

	user, tokens, err := ctrl.authService.Register(service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		if respondError(c, err, "user") {
			log.Warn("Registration rejected", map[string]interface{}{
				"email": req.Email,
				"error": err.Error(),
			})
			return
		}
		log.Error("Registration failed", err, map[string]interface{}{
			"email": req.Email,
		})
		return
	}

	log.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"user":   user,
		"tokens": tokens,
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	user, tokens, err := ctrl.authService.Login(req.Email, req.Password)
	if err != nil {
		if respondError(c, err, "user") {
			log.Warn("Login failed", map[string]interface{}{
				"email": req.Email,
			})
			return
		}
		log.Error("Login error", err)
		return
	}

	log.Info("User logged in", map[string]interface{}{
		"user_id": user.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"tokens": tokens,
	})
}

// Refresh exchanges a refresh token for a new token pair
// POST /api/v1/auth/refresh
func (ctrl *AuthController) Refresh(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	user, tokens, err := ctrl.authService.Refresh(req.RefreshToken)
	if err != nil {
		if !respondError(c, err, "user") {
			log.Error("Token refresh error", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"tokens": tokens,
	})
}

// GetMe returns current user info
// GET /api/v1/auth/me
func (ctrl *AuthController) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := ctrl.authService.GetUserByID(userID)
	if err != nil {
		if !respondError(c, err, "user") {
			middleware.GetLoggerFromContext(c).Error("Failed to load current user", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMe updates the fields present in the body
// PUT /api/v1/auth/me
func (ctrl *AuthController) UpdateMe(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.InvalidBody(c, err)
		return
	}

	user, err := ctrl.authService.UpdateProfile(userID, service.UpdateProfileInput{
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
		City:     req.City,
	})
	if err != nil {
		if !respondError(c, err, "user") {
			log.Error("Failed to update profile", err, map[string]interface{}{
				"user_id": userID,
			})
		}
		return
	}

	log.Info("Profile updated", map[string]interface{}{
		"user_id": userID,
	})
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout revokes the caller's access token
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if err := ctrl.authService.Logout(c.Request.Context(), middleware.GetAccessToken(c)); err != nil {
		log.Error("Failed to revoke token", err)
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
