package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mindcare-api/internal/middleware"
)

func TestCorrelationIDReusesAndSanitises(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		fromCtx := middleware.CorrelationIDFromContext(c.UserContext())
		require.Equal(t, middleware.GetCorrelationID(c), fromCtx)
		return c.SendString(fromCtx)
	})

	cases := []struct {
		name   string
		header string
		value  string
		reuse  bool
	}{
		{"correlation header", middleware.HeaderCorrelationID, "abc-123", true},
		{"request id fallback", fiber.HeaderXRequestID, "req-9", true},
		{"too long", middleware.HeaderCorrelationID, strings.Repeat("a", 200), false},
		{"control characters", middleware.HeaderCorrelationID, "bad\tvalue", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(tc.header, tc.value)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)

			issued := resp.Header.Get(middleware.HeaderCorrelationID)
			require.NotEmpty(t, issued)
			if tc.reuse {
				require.Equal(t, tc.value, issued)
			} else {
				require.NotEqual(t, tc.value, issued)
				require.Len(t, issued, 36)
			}
		})
	}
}
