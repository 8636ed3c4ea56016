package coinbase

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"dca-trader/internal/core"
)

type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	return "coinbase api error " + strconv.Itoa(e.Status) + ": " + e.Message
}

func wrapAPIError(status int, msg string) error {
	apiErr := APIError{Status: status, Message: msg}
	if kind := classifyAPIError(apiErr); kind != nil {
		return errors.Join(apiErr, kind)
	}
	return apiErr
}

func classifyAPIError(apiErr APIError) error {
	if apiErr.Status == http.StatusNotFound {
		return core.ErrOrderNotFound
	}
	if strings.EqualFold(strings.TrimSpace(apiErr.Message), "notfound") {
		return core.ErrOrderNotFound
	}
	return nil
}

func AsAPIError(err error) (APIError, bool) {
	if err == nil {
		return APIError{}, false
	}
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return APIError{}, false
	}
	return apiErr, true
}
