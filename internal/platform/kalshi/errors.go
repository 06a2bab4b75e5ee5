package kalshi

import (
	"errors"
	"fmt"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// APIError is returned for every failed gateway call: non-2xx responses,
// transport failures, timeouts and undecodable bodies.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Code != "":
		return fmt.Sprintf("kalshi: %s: HTTP %d: %s (%s)", e.Op, e.StatusCode, e.Message, e.Code)
	case e.StatusCode != 0:
		return fmt.Sprintf("kalshi: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("kalshi: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("kalshi: %s: failed", e.Op)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// Is makes every APIError a domain.ErrGatewayFault, and maps the status codes
// callers commonly branch on to their sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrGatewayFault:
		return true
	case domain.ErrNotFound:
		return e.StatusCode == 404
	case domain.ErrUnauthorized:
		return e.StatusCode == 401 || e.StatusCode == 403
	case domain.ErrRateLimited:
		return e.StatusCode == 429
	}
	return false
}

// IsFault reports whether err came from the gateway.
func IsFault(err error) bool {
	return errors.Is(err, domain.ErrGatewayFault)
}
