package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"finance-ledger-go/internal/ledger"
)

func TestTimeoutMiddlewareSetsDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(timeout(30))

	var hasDeadline bool
	r.GET("/ping", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(204)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Code != 204 {
		t.Fatalf("status = %d", w.Code)
	}
	if !hasDeadline {
		t.Error("request context carries no deadline")
	}
}

func TestLedgerStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"account missing", ledger.ErrAccountNotFound, 404, "not_found"},
		{"bucket missing", ledger.ErrBucketNotFound, 404, "not_found"},
		{"record missing", gorm.ErrRecordNotFound, 404, "not_found"},
		{"short funds", ledger.ErrInsufficientFunds, 422, "insufficient_funds"},
		{"illegal transfer", ledger.ErrTransferNotAllowed, 422, "transfer_not_allowed"},
		{"bad amount", ledger.ErrInvalidAmount, 422, "invalid_amount"},
		{"inconsistent ledger", ledger.ErrInvariantViolation, 500, "ledger_inconsistent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			ledgerStatus(c, tt.err)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body %q does not name %q", w.Body.String(), tt.body)
			}
		})
	}
}
