package source

import (
	"fmt"
	"net/http"
)

// ClassifyStatus maps a non-2xx provider status to a tagged error.
func ClassifyStatus(status int, body string) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrAuthenticationFailed, status)
	}
	return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, status, truncate(body, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
