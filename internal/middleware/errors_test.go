package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/auth"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func abortWith(err error) (int, response.Body) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	AbortWithError(c, nil, err)
	var body response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestAbortWithError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"missing target", fmt.Errorf("%w: region_id is required", authz.ErrMissingTarget), http.StatusBadRequest, "missing required target: region_id is required"},
		{"forbidden", &authz.ForbiddenError{Reason: authz.ReasonMismatch}, http.StatusForbidden, "forbidden: insufficient role/target mismatch"},
		{"guard", &authz.GuardError{Reason: "Promotion cannot lower a user's role."}, http.StatusForbidden, "Promotion cannot lower a user's role."},
		{"decision not found", fmt.Errorf("%w: chapter not found", authz.ErrTargetNotFound), http.StatusNotFound, "chapter not found"},
		{"repository not found", fmt.Errorf("membership: %w", authz.ErrTargetNotFound), http.StatusNotFound, "membership not found"},
		{"duplicate membership", fmt.Errorf("join request already pending: %w", authz.ErrDuplicateMembership), http.StatusConflict, "join request already pending"},
		{"duplicate name", fmt.Errorf("chapter \"Berlin\": %w", authz.ErrDuplicateName), http.StatusConflict, "chapter \"Berlin\" already exists"},
		{"email taken", auth.ErrEmailTaken, http.StatusConflict, "email already registered"},
		{"infrastructure", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := abortWith(tt.err)
			require.Equal(t, tt.code, code)
			assert.False(t, body.Success)
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}
