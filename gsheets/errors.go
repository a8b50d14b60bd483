package gsheets

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

func statusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// IsRateLimited reports whether the API rejected a call for quota.
func IsRateLimited(err error) bool {
	return statusOf(err) == http.StatusTooManyRequests
}

// IsNotFound reports whether the spreadsheet or range does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTabNotFound) || statusOf(err) == http.StatusNotFound
}

// IsForbidden reports whether the credentials lack access to the
// spreadsheet, usually because it was not shared with the service account.
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

func (c *Client) wrap(op string, err error) error {
	switch {
	case IsRateLimited(err):
		c.log().Warn("sheets quota exceeded", "op", op, "error", err)
	case IsForbidden(err):
		c.log().Warn("spreadsheet not shared with the service account", "op", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
