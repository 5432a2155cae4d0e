package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Tenant and module names double as database object names, one charset
// for both.
var nameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)

func init() {
	validate.RegisterValidation("dbname", func(fl validator.FieldLevel) bool {
		return nameRegex.MatchString(fl.Field().String())
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireName(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required name")
	}
	return s, nil
}
