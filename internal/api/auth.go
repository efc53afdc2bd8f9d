package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const apiKeyHeader = "x-api-key"

// apiKeyAuth returns middleware enforcing the x-api-key header against the
// configured key set. Comparison is constant time per key. An empty key set
// blocks every request rather than opening the endpoint.
func apiKeyAuth(keys []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented := c.Request().Header.Get(apiKeyHeader)
			if presented == "" || !keyAccepted(presented, keys) {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Status:  "error",
					Message: "invalid or missing API key",
				})
			}
			return next(c)
		}
	}
}

// keyAccepted matches the presented key against the configured set,
// case-insensitively and in constant time per key.
func keyAccepted(presented string, keys []string) bool {
	presentedLower := strings.ToLower(presented)
	accepted := false
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(presentedLower), []byte(strings.ToLower(key))) == 1 {
			accepted = true
		}
	}
	return accepted
}
