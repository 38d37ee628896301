package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Marathon app id segment: lowercase alphanumerics, dashes and dots,
// never starting or ending with a dash.
var appIDSegment = regexp.MustCompile(`^(([a-z0-9]|[a-z0-9][a-z0-9\-]*[a-z0-9])\.)*([a-z0-9]|[a-z0-9][a-z0-9\-]*[a-z0-9])$`)

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "yaml", "mapstructure"} {
			name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	validate.RegisterValidation("app_id", func(fl validator.FieldLevel) bool {
		return IsAppID(fl.Field().String())
	})
}

// IsAppID reports whether name is a valid Marathon app id, optionally
// nested in groups ("group/web").
func IsAppID(name string) bool {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return false
	}
	for _, segment := range strings.Split(name, "/") {
		if !appIDSegment.MatchString(segment) {
			return false
		}
	}
	return true
}

// StructProblems validates the struct tags on v and returns one message per
// failing field, named after the field's yaml key.
func StructProblems(v any) Problems {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Problems{err.Error()}
	}

	problems := make(Problems, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fieldMessage(fe))
	}
	return problems
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("You must specify %s", fe.Field())
	case "app_id":
		return fmt.Sprintf("%s '%v' is not a valid app id", fe.Field(), fe.Value())
	case "url":
		return fmt.Sprintf("%s '%v' is not a valid URL", fe.Field(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s '%v' must be one of %s", fe.Field(), fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the '%s' check", fe.Field(), fe.Tag())
	}
}
