package security

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		cfg      HeadersConfig
		wantHSTS bool
	}{
		{"production", HeadersConfig{AllowedOrigins: []string{"https://intranet.example.com"}}, true},
		{"development", HeadersConfig{IsDevelopment: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(HeadersMiddleware(tt.cfg))
			app.Get("/", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)

			assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Equal(t, tt.wantHSTS, resp.Header.Get("Strict-Transport-Security") != "")
			for _, o := range tt.cfg.AllowedOrigins {
				assert.Contains(t, resp.Header.Get("Content-Security-Policy"), o)
			}
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	open := HeadersConfig{}
	assert.True(t, OriginAllowed(open, "https://anything.example.com"))

	locked := HeadersConfig{AllowedOrigins: []string{"https://intranet.example.com"}}
	assert.True(t, OriginAllowed(locked, "https://INTRANET.example.com"))
	assert.False(t, OriginAllowed(locked, "https://evil.example.com"))
}
