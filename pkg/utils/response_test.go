package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSuccessResponseFlattens(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessResponse(w, map[string]interface{}{"clients": []string{"a"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []interface{}{"a"}, body["clients"])
}

func TestWriteForbiddenResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteForbiddenResponse(w, "Forbidden")

	assert.Equal(t, http.StatusForbidden, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Forbidden", body.Error)
	assert.Equal(t, "FORBIDDEN", body.Code)
}
