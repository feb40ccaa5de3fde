package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"castscribe/internal/services"
)

// ClassifyError maps a go-openai failure onto the services taxonomy so callers
// can decide on retries and user-facing messages.
func ClassifyError(stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, operation, "request timed out", err)
	}

	status := 0
	message := ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		message = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status != 0 {
		detail := fmt.Sprintf("http %d", status)
		if message = strings.TrimSpace(message); message != "" {
			detail += ": " + message
		}
		switch {
		case status == http.StatusUnauthorized, status == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, stage, operation, detail, err)
		case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
			return services.Wrap(services.ErrTimeout, stage, operation, detail, err)
		case status == http.StatusTooManyRequests:
			if strings.Contains(message, "quota") || strings.Contains(message, "billing") {
				return services.Wrap(services.ErrConfiguration, stage, operation, detail, err)
			}
			return services.Wrap(services.ErrTransient, stage, operation, detail, err)
		case status >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, stage, operation, detail, err)
		default:
			return services.Wrap(services.ErrExternalTool, stage, operation, detail, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, stage, operation, "network timeout", err)
	}
	return services.Wrap(services.ErrTransient, stage, operation, "request failed", err)
}

// IsRetryable reports whether a classified error is worth another attempt.
// Configuration problems such as bad keys or exhausted quota are permanent.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrValidation):
		return false
	default:
		return true
	}
}
