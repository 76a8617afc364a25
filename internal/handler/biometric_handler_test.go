package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-checkin-api/internal/models"
)

func TestBiometricHandlerCameraErrorClassification(t *testing.T) {
	handler := NewBiometricHandler(nil)

	c, w := newTestContext(t, http.MethodPost, "/kiosk/camera-error",
		[]byte(`{"error_name":"NotAllowedError","message":"Permission denied"}`))
	handler.CameraError(c)
	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(models.CameraPermissionDenied), data["code"])
	assert.NotEmpty(t, data["guidance"])
}

func TestBiometricHandlerCameraErrorBadPayload(t *testing.T) {
	handler := NewBiometricHandler(nil)

	c, w := newTestContext(t, http.MethodPost, "/kiosk/camera-error", []byte(`{`))
	handler.CameraError(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBiometricHandlerMatchBadPayload(t *testing.T) {
	handler := NewBiometricHandler(nil)

	c, w := newTestContext(t, http.MethodPost, "/biometric/match", []byte(`not json`))
	handler.Match(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
