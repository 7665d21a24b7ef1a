package middlewares

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"danceschool-backend/billing"
)

var validate = validator.New()

// BindAndValidate parses the request body into dst and validates it.
// Parse failures surface as invalid-argument billing errors (ErrorHandler maps
// them to 400); validation issues come back as validator.ValidationErrors.
func BindAndValidate(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return billing.E(billing.CodeInvalidArgument, "invalid request body")
	}
	// NOTE: For slices/arrays, call ValidateStruct per-element in the controller.
	return validate.Struct(dst)
}

// ValidateStruct validates any struct value using the shared validator instance.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
