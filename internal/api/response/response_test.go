package response

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edvin/tenantctl/internal/core"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad name", core.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: bad signature", core.ErrUnauthenticated), http.StatusUnauthorized},
		{fmt.Errorf("tenant x: %w", core.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: already exists", core.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: queue down", core.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		FromError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}
