package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/kingrain94/entitlement-api/internal/domain"
)

var (
	schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
	subdomainPattern  = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
	flagKeyPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,127}$`)

	registerOnce sync.Once
)

// RegisterValidators installs the request validation tags on gin's validator.
// It is safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})

		_ = v.RegisterValidation("schemaname", matches(schemaNamePattern))
		_ = v.RegisterValidation("subdomain", matches(subdomainPattern))
		_ = v.RegisterValidation("flagkey", matches(flagKeyPattern))
		_ = v.RegisterValidation("tenantstatus", oneOf(domain.IsValidTenantStatus))
		_ = v.RegisterValidation("flagstatus", oneOf(domain.IsValidFlagStatus))
		_ = v.RegisterValidation("planlevel", oneOf(domain.IsValidPlanLevel))
		_ = v.RegisterValidation("flagchangeaction", oneOf(domain.IsValidFlagChangeAction))
	})
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

func oneOf(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return valid(fl.Field().String())
	}
}

// FormatBindingError renders a bind or validation failure as a readable message.
func FormatBindingError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, io.EOF) {
		return "Request body is empty"
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("Invalid JSON at byte offset %d", syntaxErr.Offset)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("Field '%s' should be of type %s", typeErr.Field, typeErr.Type.String())
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make([]string, 0, len(ve))
		for _, fe := range ve {
			out = append(out, formatFieldError(fe))
		}
		return strings.Join(out, ", ")
	}

	return err.Error()
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "min":
		return fmt.Sprintf("Field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must be at most %s", fe.Field(), fe.Param())
	case "schemaname":
		return fmt.Sprintf("Field '%s' must be a lowercase identifier of at most 63 characters", fe.Field())
	case "subdomain":
		return fmt.Sprintf("Field '%s' must be a valid DNS label", fe.Field())
	case "flagkey":
		return fmt.Sprintf("Field '%s' must be a lowercase flag key", fe.Field())
	case "tenantstatus", "flagstatus", "planlevel", "flagchangeaction":
		return fmt.Sprintf("Field '%s' has an unsupported value '%v'", fe.Field(), fe.Value())
	}
	return fmt.Sprintf("Field '%s' failed validation for '%s'", fe.Field(), fe.Tag())
}
