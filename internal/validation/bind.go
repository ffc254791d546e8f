package validation

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/multiregion-ecommerce/internal/apperr"
)

// BindCreateOrder reads the request body from c and runs Decode on it. Rendering the error is
// left to the handler so every surface shares the same error shape.
func BindCreateOrder(c *gin.Context, v *validatorv10.Validate) (CreateOrderRequest, error) {
	body, err := c.GetRawData()
	if err != nil {
		return CreateOrderRequest{}, apperr.New(apperr.KindValidation, MsgInvalidJSON, fmt.Errorf("read body: %w", err))
	}
	return Decode(v, body)
}

// FieldErrors flattens validator output to namespace -> tag, for logging.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Tag()
		}
	}
	return out
}
