package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/passpolicy/pkg/errors"
	"github.com/jwalitptl/passpolicy/pkg/event"
	"github.com/jwalitptl/passpolicy/pkg/httputil"
)

// Dispatcher delivers a hook event to its subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt *event.Event) error
}

// Handler receives host application hooks.
type Handler struct {
	dispatcher Dispatcher
	now        func() time.Time
}

func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher, now: time.Now}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	hooks := r.Group("/hooks")
	{
		hooks.POST("/profile-update/validate", h.ValidateProfileUpdate)
		hooks.POST("/password-reset/validate", h.ValidatePasswordReset)
		hooks.POST("/profile-update/commit", h.ProfileUpdated)
		hooks.POST("/user-created", h.UserCreated)
	}
}

type profileUpdateRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Update bool   `json:"update"`
	Pass1  string `json:"pass1"`
	Pass2  string `json:"pass2"`
}

type passwordResetRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Pass1  string `json:"pass1"`
}

type userRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

type validationResponse struct {
	Errors []event.FieldError `json:"errors"`
}

func (h *Handler) ValidateProfileUpdate(c *gin.Context) {
	var req profileUpdateRequest
	if !bind(c, &req) {
		return
	}
	h.validate(c, &event.Event{
		Kind:            event.KindProfileUpdateValidate,
		UserID:          uuid.MustParse(req.UserID),
		IsUpdate:        req.Update,
		Password:        req.Pass1,
		PasswordConfirm: req.Pass2,
	})
}

func (h *Handler) ValidatePasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if !bind(c, &req) {
		return
	}
	h.validate(c, &event.Event{
		Kind:     event.KindPasswordResetValidate,
		UserID:   uuid.MustParse(req.UserID),
		Password: req.Pass1,
	})
}

func (h *Handler) ProfileUpdated(c *gin.Context) {
	var req userRequest
	if !bind(c, &req) {
		return
	}
	h.commit(c, event.KindProfileUpdated, uuid.MustParse(req.UserID))
}

func (h *Handler) UserCreated(c *gin.Context) {
	var req userRequest
	if !bind(c, &req) {
		return
	}
	h.commit(c, event.KindUserRegistered, uuid.MustParse(req.UserID))
}

func (h *Handler) validate(c *gin.Context, evt *event.Event) {
	evt.Errors = &event.ErrorCollector{}
	evt.OccurredAt = h.now()
	if err := h.dispatcher.Dispatch(c.Request.Context(), evt); err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}
	c.JSON(http.StatusOK, validationResponse{Errors: evt.Errors.Items()})
}

func (h *Handler) commit(c *gin.Context, kind event.Kind, userID uuid.UUID) {
	evt := &event.Event{Kind: kind, UserID: userID, OccurredAt: h.now()}
	if err := h.dispatcher.Dispatch(c.Request.Context(), evt); err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// bind decodes and validates the body; the binding tag guarantees
// user_id parses as a UUID.
func bind(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var (
		tooLarge  *http.MaxBytesError
		invalid   validator.ValidationErrors
		wrongType *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.ErrorBody{
			Code:    "request_too_large",
			Message: "Request body too large.",
		})
	case errors.As(err, &invalid), errors.As(err, &wrongType):
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid_request", "user_id is required and must be a UUID.", err))
	default:
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid_json", "Request body must be a JSON object.", err))
	}
	return false
}
