package middlewares

import (
	"errors"
	"log"

	"danceschool-backend/billing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Maps billing error codes to HTTP statuses.
func statusForCode(code billing.Code) int {
	switch code {
	case billing.CodeInvalidArgument:
		return fiber.StatusBadRequest
	case billing.CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case billing.CodeNotFound:
		return fiber.StatusNotFound
	case billing.CodePaymentRejected:
		return fiber.StatusUnprocessableEntity
	case billing.CodeGatewayError:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler centralizes error responses and keeps messages sanitized.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Classified billing errors (taxonomy status + user-safe message)
	var be *billing.Error
	if errors.As(err, &be) {
		return c.Status(statusForCode(be.Code)).JSON(fiber.Map{"message": be.Message})
	}

	// 2) Fiber errors (use their status code + message)
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 3) Validation errors (422 + per-field info)
	if ve, ok := err.(validator.ValidationErrors); ok {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			// fe.Field() is struct field name; you can map to json tag if you prefer
			out[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 4) Unknown errors (500)
	log.Printf("internal error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
