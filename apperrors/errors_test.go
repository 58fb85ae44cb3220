package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"chatcore/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperrors.NewStorageError("message_appended", cause)

	assert.Equal(t, apperrors.ErrCodeServiceUnavail, err.Code)
	assert.Equal(t, fiber.StatusServiceUnavailable, err.StatusCode)
	assert.Contains(t, err.Message, "message_appended")
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(apperrors.NewChatNotFound("c1")))
	assert.Equal(t, apperrors.ErrCodeNotMember,
		apperrors.CodeOf(fmt.Errorf("wrapped: %w", apperrors.NewNotMember("c1", "u1"))))

	// Anything else defaults to internal
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.CodeOf(errors.New("boom")))
}

func TestFromError(t *testing.T) {
	require.Nil(t, apperrors.FromError(nil))

	appErr := apperrors.NewUnauthenticated("")
	assert.Same(t, appErr, apperrors.FromError(appErr))

	converted := apperrors.FromError(errors.New("boom"))
	assert.Equal(t, apperrors.ErrCodeInternal, converted.Code)
	assert.EqualError(t, converted.Internal, "boom")

	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.FromError(fiber.ErrNotFound).Code)
}
