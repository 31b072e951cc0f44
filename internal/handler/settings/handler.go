package settings

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/policy"
	apperrors "github.com/jwalitptl/passpolicy/pkg/errors"
	"github.com/jwalitptl/passpolicy/pkg/httputil"
)

const savedMessage = "Settings saved successfully."

// Service is the settings store as seen by the admin endpoint.
type Service interface {
	Get(ctx context.Context) (model.Settings, error)
	Save(ctx context.Context, raw policy.RawSettings) (model.Settings, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the endpoints on r. Callers are expected to have
// applied authentication to r.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	settings := r.Group("/settings")
	{
		settings.GET("", h.GetSettings)
		settings.POST("", h.SaveSettings)
	}
}

type saveResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Settings model.Settings `json:"settings"`
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) SaveSettings(c *gin.Context) {
	var raw policy.RawSettings
	if err := c.ShouldBindJSON(&raw); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid_json", "Request body must be a JSON object.", err))
		return
	}

	settings, err := h.service.Save(c.Request.Context(), raw)
	if err != nil {
		var vErr *policy.ValidationError
		if errors.As(err, &vErr) {
			httputil.RespondWithError(c, apperrors.NewBadRequest(vErr.Code, vErr.Message, err))
			return
		}
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	c.JSON(http.StatusOK, saveResponse{
		Success:  true,
		Message:  savedMessage,
		Settings: settings,
	})
}
