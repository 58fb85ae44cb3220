package apperrors

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Pre-defined error constructors for the delivery core

func NewUnauthenticated(message string) *AppError {
	if message == "" {
		message = "Not authenticated"
	}
	return New(ErrCodeUnauthenticated, message, fiber.StatusUnauthorized)
}

func NewChatNotFound(chatID string) *AppError {
	return New(ErrCodeNotFound, "Chat not found", fiber.StatusNotFound).
		WithDetails("chat_id", chatID)
}

func NewMessageNotFound(messageID string) *AppError {
	return New(ErrCodeNotFound, "Message not found", fiber.StatusNotFound).
		WithDetails("message_id", messageID)
}

func NewNotMember(chatID, userID string) *AppError {
	return New(ErrCodeNotMember, "Not a member of chat", fiber.StatusForbidden).
		WithDetails("chat_id", chatID).
		WithDetails("user_id", userID)
}

func NewInvalidArgument(message string) *AppError {
	if message == "" {
		message = "Invalid request"
	}
	return New(ErrCodeInvalidArgument, message, fiber.StatusBadRequest)
}

func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An internal error occurred"
	}
	return New(ErrCodeInternal, message, fiber.StatusInternalServerError)
}

func NewStorageError(operation string, err error) *AppError {
	return New(ErrCodeServiceUnavail, "Storage error during "+operation, fiber.StatusServiceUnavailable).
		WithInternal(err)
}

// FromError converts a standard error to AppError if possible
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, fiber.ErrUnauthorized) {
		return NewUnauthenticated("")
	}
	if errors.Is(err, fiber.ErrNotFound) {
		return New(ErrCodeNotFound, "Resource not found", fiber.StatusNotFound)
	}
	if errors.Is(err, fiber.ErrBadRequest) {
		return NewInvalidArgument("")
	}

	return NewInternalError("").WithInternal(err)
}
