package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-server/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiredErr struct{}

func (expiredErr) Error() string         { return "expired" }
func (expiredErr) ErrorKind() apperr.Kind { return apperr.KindAuth }
func (expiredErr) PublicMessage() string  { return "Token expired" }

func run(t *testing.T, fn func(c *gin.Context)) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestFail_MapsKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		client  bool
		status  int
		message string
	}{
		{"validation", apperr.Validation("Email is required"), false, 400, "Email is required"},
		{"conflict", apperr.Conflict("User already exists"), false, 400, "User already exists"},
		{"not found", apperr.NotFound("User not found"), false, 404, "User not found"},
		{"auth public message", expiredErr{}, false, 401, "Token expired"},
		{"store", apperr.Store("Internal server error", errors.New("db")), false, 500, "Internal server error"},
		{"store on client path", apperr.Store("could not save", errors.New("db")), true, 400, "could not save"},
		{"unknown", errors.New("raw"), false, 500, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := run(t, func(c *gin.Context) {
				if tt.client {
					FailClient(c, tt.err)
				} else {
					Fail(c, tt.err)
				}
			})
			assert.Equal(t, tt.status, code)
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestSuccessWithMessage(t *testing.T) {
	code, body := run(t, func(c *gin.Context) {
		SuccessWithMessage(c, "ok", gin.H{"n": 1})
	})
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	assert.Equal(t, "ok", body.Message)
}
