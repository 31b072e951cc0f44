package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/passpolicy/pkg/event"
)

type recordingDispatcher struct {
	events []*event.Event
	reject bool
	err    error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.events = append(d.events, evt)
	if d.err != nil {
		return d.err
	}
	if d.reject && evt.Errors != nil {
		evt.Errors.Add("password_previously_used", "You cannot reuse one of your last 3 passwords. Please choose a different password.")
	}
	return nil
}

func setupRouter(d Dispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(d).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hooks"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidateProfileUpdateReturnsErrors(t *testing.T) {
	d := &recordingDispatcher{reject: true}
	userID := uuid.New()

	w := post(setupRouter(d), "/profile-update/validate",
		`{"user_id":"`+userID.String()+`","update":true,"pass1":"old","pass2":"old"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var got validationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "password_previously_used", got.Errors[0].Code)

	require.Len(t, d.events, 1)
	evt := d.events[0]
	assert.Equal(t, event.KindProfileUpdateValidate, evt.Kind)
	assert.Equal(t, userID, evt.UserID)
	assert.True(t, evt.IsUpdate)
	assert.Equal(t, "old", evt.Password)
	assert.Equal(t, "old", evt.PasswordConfirm)
}

func TestValidatePasswordResetAccepted(t *testing.T) {
	d := &recordingDispatcher{}
	w := post(setupRouter(d), "/password-reset/validate", `{"user_id":"`+uuid.NewString()+`","pass1":"fresh"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"errors":[]}`, w.Body.String())
	assert.Equal(t, event.KindPasswordResetValidate, d.events[0].Kind)
}

func TestCommitHooksReturnNoContent(t *testing.T) {
	tests := []struct {
		path string
		kind event.Kind
	}{
		{"/profile-update/commit", event.KindProfileUpdated},
		{"/user-created", event.KindUserRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d := &recordingDispatcher{}
			w := post(setupRouter(d), tt.path, `{"user_id":"`+uuid.NewString()+`"}`)

			assert.Equal(t, http.StatusNoContent, w.Code)
			require.Len(t, d.events, 1)
			assert.Equal(t, tt.kind, d.events[0].Kind)
		})
	}
}

func TestHooksRejectBadUserID(t *testing.T) {
	d := &recordingDispatcher{}
	r := setupRouter(d)

	assert.Equal(t, http.StatusBadRequest, post(r, "/user-created", `{"user_id":"42"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/user-created", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/profile-update/commit", `not json`).Code)
	assert.Empty(t, d.events)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestHooksReportBindFailureCause(t *testing.T) {
	d := &recordingDispatcher{}
	r := setupRouter(d)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"user_id":`, http.StatusBadRequest, "invalid_json"},
		{"not an object", `not json`, http.StatusBadRequest, "invalid_json"},
		{"missing user", `{}`, http.StatusBadRequest, "invalid_request"},
		{"user not a uuid", `{"user_id":"42"}`, http.StatusBadRequest, "invalid_request"},
		{"user wrong type", `{"user_id":42}`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, "/user-created", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
	assert.Empty(t, d.events)
}

func TestHooksRejectOversizedStreamedBody(t *testing.T) {
	d := &recordingDispatcher{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 16)
		c.Next()
	})
	NewHandler(d).RegisterRoutes(r.Group("/api/v1"))

	w := post(r, "/user-created", `{"user_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request_too_large", errorCode(t, w))
	assert.Empty(t, d.events)
}

func TestHooksSurfaceDispatchFailure(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("db down")}
	r := setupRouter(d)

	assert.Equal(t, http.StatusInternalServerError, post(r, "/password-reset/validate", `{"user_id":"`+uuid.NewString()+`","pass1":"x"}`).Code)
	assert.Equal(t, http.StatusInternalServerError, post(r, "/user-created", `{"user_id":"`+uuid.NewString()+`"}`).Code)
}
