package errutil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/utils/logging"
)

// Handle logs the error with its goerr values and stack, and reports it to Sentry when
// a Sentry client has been initialized. It returns err unchanged.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logging.From(ctx).Error(msg, errAttrs(err)...)

	if hub := sentryHub(ctx); hub.Client() != nil {
		hub.CaptureException(err)
	}

	return err
}

// HandleHTTP logs the error and writes a JSON error body with statusCode.
// Only 4xx errors expose err.Error() to the client; 5xx responses carry a generic message.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	attrs := append([]any{"status", statusCode}, errAttrs(err)...)
	if statusCode >= http.StatusInternalServerError {
		logging.From(ctx).Error("HTTP error", attrs...)
		if hub := sentryHub(ctx); hub.Client() != nil {
			hub.CaptureException(err)
		}
	} else {
		logging.From(ctx).Warn("HTTP error", attrs...)
	}

	msg := err.Error()
	if statusCode >= http.StatusInternalServerError {
		msg = http.StatusText(statusCode)
	}
	WriteJSONError(ctx, w, msg, statusCode)
}

// WriteJSONError writes {"error": msg} with statusCode
func WriteJSONError(ctx context.Context, w http.ResponseWriter, msg string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		logging.From(ctx).Error("failed to write error response", slog.Any("error", err))
	}
}

func errAttrs(err error) []any {
	var ge *goerr.Error
	if errors.As(err, &ge) {
		return []any{
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		}
	}
	return []any{"error", err.Error()}
}

func sentryHub(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}
