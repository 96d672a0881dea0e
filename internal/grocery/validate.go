package grocery

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidCatalogInput is returned when a product or category name fails
// validation, whether it came from a user edit or the external parser.
var ErrInvalidCatalogInput = errors.New("invalid catalog input")

// CatalogInput is the untrusted shape of one item about to be written to
// the catalog.
type CatalogInput struct {
	Article  string `validate:"required,max=120,nocontrol"`
	Category string `validate:"required,max=60,nocontrol"`
	Term     string `validate:"max=200,nocontrol"`
	Quantity int    `validate:"min=1"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsControl)
	})
	return v
}

// SanitizeName collapses runs of whitespace and trims the ends.
func SanitizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Sanitize normalizes whitespace in every text field and clamps the
// quantity to at least 1.
func (in CatalogInput) Sanitize() CatalogInput {
	in.Article = SanitizeName(in.Article)
	in.Category = SanitizeName(in.Category)
	in.Term = SanitizeName(in.Term)
	if in.Quantity < 1 {
		in.Quantity = 1
	}
	return in
}

func validateInput(v *validator.Validate, in CatalogInput) error {
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrInvalidCatalogInput, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidCatalogInput, err)
	}
	return nil
}
