package websocket

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginChecker(t *testing.T) {
	t.Run("empty allowlist permits any origin", func(t *testing.T) {
		check := originChecker(nil)

		r := httptest.NewRequest("GET", "/ws/rooms/x", nil)
		r.Header.Set("Origin", "https://evil.example")

		assert.True(t, check(r))
	})

	t.Run("listed origin is accepted case-insensitively", func(t *testing.T) {
		check := originChecker([]string{"https://poker.example.com"})

		r := httptest.NewRequest("GET", "/ws/rooms/x", nil)
		r.Header.Set("Origin", "https://Poker.Example.com")

		assert.True(t, check(r))
	})

	t.Run("unlisted origin is rejected", func(t *testing.T) {
		check := originChecker([]string{"https://poker.example.com"})

		r := httptest.NewRequest("GET", "/ws/rooms/x", nil)
		r.Header.Set("Origin", "https://evil.example")

		assert.False(t, check(r))
	})

	t.Run("missing origin header is rejected when allowlist is set", func(t *testing.T) {
		check := originChecker([]string{"https://poker.example.com"})

		r := httptest.NewRequest("GET", "/ws/rooms/x", nil)

		assert.False(t, check(r))
	})
}
