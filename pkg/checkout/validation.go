package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/angelmondragon/storefront-cart/pkg/cart"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// ValidateInput checks the buyer-supplied checkout fields.
func ValidateInput(input Input) error {
	if err := validate.Struct(input); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			details := map[string]string{}
			for _, fieldErr := range errs {
				details[fieldErr.Field()] = validationMessage(fieldErr)
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout details").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout details")
	}
	return nil
}

// QuantityViolation describes a line that cannot be ordered.
type QuantityViolation struct {
	ItemCode     string `json:"item_code"`
	UnitCode     string `json:"unit_code"`
	RequestedQty int    `json:"requested_qty"`
}

// ValidateLines ensures there is something to order and no line carries a
// negative quantity. Zero-quantity lines are ordered as they are.
func ValidateLines(lines []cart.Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	var violations []QuantityViolation
	for _, line := range lines {
		if line.Quantity >= 0 {
			continue
		}
		violations = append(violations, QuantityViolation{
			ItemCode:     line.ItemCode,
			UnitCode:     line.UnitCode,
			RequestedQty: line.Quantity,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must not be negative for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}
