package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errdefs.ErrMissingArtifact):
		return fiber.StatusServiceUnavailable, "missing_artifact"
	case errors.Is(err, errdefs.ErrUnsupportedMode):
		return fiber.StatusBadRequest, "unsupported_mode"
	case errors.Is(err, errdefs.ErrInvalidArgument):
		return fiber.StatusBadRequest, "invalid_argument"
	case errors.Is(err, errdefs.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, errdefs.ErrCompression),
		errors.Is(err, errdefs.ErrEmbedding),
		errors.Is(err, errdefs.ErrGeneration):
		return fiber.StatusBadGateway, "model_failure"
	case errors.Is(err, errdefs.ErrCorruptState), errors.Is(err, errdefs.ErrCorpusMismatch):
		return fiber.StatusInternalServerError, "bad_state"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status, kind := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(llm.ErrorResponse{Error: err.Error(), Kind: kind})
}

// errorHandler renders fiber's own errors (unknown routes, bad methods)
// in the API's error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}
