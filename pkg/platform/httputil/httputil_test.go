package httputil

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gatekeep/pkg/domain-errors"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestWriteErrorMapsCodesToStatuses(t *testing.T) {
	cases := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeValidation, 400},
		{dErrors.CodeBadRequest, 400},
		{dErrors.CodeUnauthorized, 401},
		{dErrors.CodeForbidden, 403},
		{dErrors.CodeNotFound, 404},
		{dErrors.CodeConflict, 409},
		{dErrors.CodeInvariantViolation, 409},
		{dErrors.CodeUnavailable, 503},
		{dErrors.CodeInternal, 500},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		WriteError(rr, dErrors.New(tc.code, "boom"))
		assert.Equal(t, tc.status, rr.Code, "code %s", tc.code)

		body := decodeBody(t, rr)
		assert.Equal(t, string(tc.code), body["error"])
	}
}

func TestWriteErrorRedactsInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, dErrors.New(dErrors.CodeInternal, "pg: connection refused"))

	body := decodeBody(t, rr)
	assert.NotContains(t, body, "error_description")
}

func TestWriteErrorExposesClientFacingDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, dErrors.New(dErrors.CodeValidation, "justification is required"))

	body := decodeBody(t, rr)
	assert.Equal(t, "justification is required", body["error_description"])
}

func TestWriteJSONSetsContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, 201, map[string]int{"id": 7})

	assert.Equal(t, 201, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestDecodeRejectsMalformedBody(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))

	_, ok := Decode[map[string]string](rr, req)
	assert.False(t, ok)
	assert.Equal(t, 400, rr.Code)
	assert.Equal(t, string(dErrors.CodeBadRequest), decodeBody(t, rr)["error"])
}
