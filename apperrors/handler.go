package apperrors

import (
	"chatcore/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// HandlerConfig configures the error handler
type HandlerConfig struct {
	// ShowInternalErrors shows internal error details in responses (dev only)
	ShowInternalErrors bool

	// OnError is called for each error (useful for metrics/monitoring)
	OnError func(c *fiber.Ctx, err *AppError)
}

// Handler creates a Fiber error handler for the REST query surface.
// WebSocket event failures never reach this path; they are reported as a
// single error event to the originating session.
func Handler(config HandlerConfig) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := FromError(err)

		logError(c, appErr)

		if config.OnError != nil {
			config.OnError(c, appErr)
		}

		response := fiber.Map{
			"error": fiber.Map{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		}

		if len(appErr.Details) > 0 {
			response["error"].(fiber.Map)["details"] = appErr.Details
		}

		if config.ShowInternalErrors && appErr.Internal != nil {
			response["error"].(fiber.Map)["internal"] = appErr.Internal.Error()
		}

		return c.Status(appErr.StatusCode).JSON(response)
	}
}

// logError logs the error with request context
func logError(c *fiber.Ctx, err *AppError) {
	entry := logger.WithFields(map[string]any{
		"method": c.Method(),
		"path":   c.Path(),
		"status": err.StatusCode,
		"code":   err.Code,
	})

	// Expected errors stay below error level
	if err.StatusCode < 500 {
		entry.Warn("%s", err.Message)
		return
	}

	entry.WithError(err).Error("request failed")
}
