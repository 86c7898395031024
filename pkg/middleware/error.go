package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	appctx "github.com/gustavoairestiago/cadastro-retorno/pkg/context"
	apperrors "github.com/gustavoairestiago/cadastro-retorno/pkg/errors"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/tracing"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Error is the central HTTP error handler. Fatal run errors surface verbatim
// with enough context (form id, cause) for the caller to display.
func Error(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		logger.Error("api is returning an error", zap.Error(err))
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		meta := map[string]any{}

		var he *echo.HTTPError
		var cfgErr *apperrors.ConfigError
		var fetchErr *apperrors.FetchError
		var reconErr *apperrors.ReconciliationError

		switch {
		case errors.As(err, &he):
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		case errors.As(err, &cfgErr):
			code = http.StatusUnprocessableEntity
			message = cfgErr.Error()
			meta["project_id"] = cfgErr.ProjectID
			meta["field"] = cfgErr.Field
		case errors.As(err, &fetchErr):
			code = http.StatusBadGateway
			message = fetchErr.Error()
			meta["form_id"] = fetchErr.FormID
		case errors.As(err, &reconErr):
			message = reconErr.Error()
		}

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: appctx.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}
