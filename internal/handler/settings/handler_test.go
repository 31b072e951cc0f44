package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/policy"
	"github.com/jwalitptl/passpolicy/pkg/httputil"
)

type memoryService struct {
	stored  model.Settings
	getErr  error
	saveErr error
}

func (m *memoryService) Get(ctx context.Context) (model.Settings, error) {
	return m.stored, m.getErr
}

func (m *memoryService) Save(ctx context.Context, raw policy.RawSettings) (model.Settings, error) {
	if m.saveErr != nil {
		return model.Settings{}, m.saveErr
	}
	s, err := policy.Validate(raw)
	if err != nil {
		return model.Settings{}, err
	}
	m.stored = s
	return s, nil
}

func setupRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/settings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validBody = `{
	"force_password_reset": true,
	"disallow_last_password": true,
	"password_history_count": 5,
	"enable_reminder": true,
	"expiry_days": 60,
	"reminder_days": 10
}`

func TestGetSettings(t *testing.T) {
	r := setupRouter(&memoryService{stored: model.DefaultSettings()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got model.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.DefaultSettings(), got)
}

func TestGetSettingsStorageFailure(t *testing.T) {
	r := setupRouter(&memoryService{getErr: errors.New("db down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSaveSettingsSuccess(t *testing.T) {
	svc := &memoryService{}
	w := post(setupRouter(svc), validBody)

	require.Equal(t, http.StatusOK, w.Code)
	var got saveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Equal(t, "Settings saved successfully.", got.Message)
	assert.Equal(t, 60, got.Settings.ExpiryDays)
	assert.Equal(t, svc.stored, got.Settings)
}

func TestSaveSettingsRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"force_password_reset":`, "invalid_json"},
		{"not an object", `[1,2]`, "invalid_json"},
		{"reminder not before expiry", strings.Replace(validBody, `"reminder_days": 10`, `"reminder_days": 60`, 1), policy.CodeInvalidReminderDays},
		{"missing field", `{"force_password_reset": true}`, policy.CodeMissingField},
		{"history out of range", strings.Replace(validBody, `"password_history_count": 5`, `"password_history_count": 11`, 1), policy.CodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &memoryService{stored: model.DefaultSettings()}
			w := post(setupRouter(svc), tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var body httputil.ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, model.DefaultSettings(), svc.stored)
		})
	}
}

func TestSaveSettingsReminderMessage(t *testing.T) {
	w := post(setupRouter(&memoryService{}), strings.Replace(validBody, `"reminder_days": 10`, `"reminder_days": 90`, 1))

	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Reminder days must be less than expiry days.", body.Message)
}

func TestSaveSettingsStorageFailure(t *testing.T) {
	w := post(setupRouter(&memoryService{saveErr: errors.New("db down")}), validBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
