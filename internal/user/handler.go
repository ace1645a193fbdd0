// File: internal/user/handler.go
package user

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"authgate/internal/common"
	"authgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for profile handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes sets up the profile routes. Every route requires authMW.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc) {
	authenticated := router.Group("", authMW)
	{
		authenticated.POST("/users", h.createProfile)
		authenticated.POST("/users/google", h.googleLogin)
		authenticated.GET("/protected", h.protected)
	}
}

func (h *Handler) createProfile(c *gin.Context) {
	var req CreateProfileRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.service.CreateProfile(c.Request.Context(), middleware.GetClaimsFromContext(c), req.UserName)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ToProfileResponse(result.Profile))
}

func (h *Handler) googleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.service.FindOrCreateProfile(c.Request.Context(), middleware.GetClaimsFromContext(c), req.UserName, req.Email)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.logger.Debug("Google login provisioned",
		zap.String("uid", result.Profile.UID),
		zap.Stringer("outcome", result.Outcome),
	)
	c.JSON(http.StatusOK, GoogleLoginResponse{
		Message: "Google login success",
		User:    ToProfileResponse(result.Profile),
	})
}

func (h *Handler) protected(c *gin.Context) {
	claims := middleware.GetClaimsFromContext(c)
	if claims == nil {
		h.logger.Error("Claims not found in context for /protected", zap.String("path", c.Request.URL.Path))
		common.RespondWithError(c, common.ErrUnauthenticated)
		return
	}
	resp := ProtectedResponse{
		Message: fmt.Sprintf("Hello %s", claims.Email),
		UID:     claims.UID,
	}
	// The profile is optional here: a verified token alone grants access.
	profile, err := h.service.GetProfile(c.Request.Context(), claims.UID)
	switch {
	case err == nil:
		resp.UserName = profile.UserName
	case !errors.Is(err, common.ErrNotFound):
		h.logger.Warn("Profile lookup failed on protected route", zap.Error(err), zap.String("uid", claims.UID))
	}
	c.JSON(http.StatusOK, resp)
}

// bind decodes the JSON body into req. An empty body leaves req zero-valued.
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid request body", zap.Error(err), zap.String("path", c.Request.URL.Path))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return false
	}
	return true
}
