package ledger

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Money fields are validated as numbers.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ValidateOrder checks the fields an order must carry before any write.
// Defaults are applied first, so an unset status is not an error.
func ValidateOrder(o Order) error {
	o = o.WithDefaults()
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	out := &ValidationError{Kind: ErrInvalidOrder}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return out
}

// ValidateEntry checks a manual posting draft.
func ValidateEntry(d PostingDraft) error {
	out := &ValidationError{Kind: ErrInvalidEntry}
	if d.PartyID == "" {
		out.Fields = append(out.Fields, FieldError{Field: "PartyID", Message: "is required"})
	}
	if d.Amount.IsZero() {
		out.Fields = append(out.Fields, FieldError{Field: "Amount", Message: "must be non-zero"})
	}
	if !d.Type.IsValid() {
		out.Fields = append(out.Fields, FieldError{Field: "Type", Message: fmt.Sprintf("unknown transaction type %q", d.Type)})
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}

// ValidateParty checks a directory entry.
func ValidateParty(p Party) error {
	out := &ValidationError{Kind: ErrInvalidParty}
	if NormalizeName(p.Name) == "" {
		out.Fields = append(out.Fields, FieldError{Field: "Name", Message: "is required"})
	}
	if !p.Type.IsValid() {
		out.Fields = append(out.Fields, FieldError{Field: "Type", Message: fmt.Sprintf("unknown party type %q", p.Type)})
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return "must not be empty"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
