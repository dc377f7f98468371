package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate normalizes case-insensitive fields and checks every value.
// A missing store URI is reported first.
func (c *Config) Validate() error {
	c.StoreURI = strings.TrimSpace(c.StoreURI)
	c.MatchMode = strings.ToLower(strings.TrimSpace(c.MatchMode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	if c.StoreURI == "" {
		return fmt.Errorf("store_uri is required: set %s or pass --store", EnvStoreURI)
	}

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "contains":
		return fmt.Sprintf("%s must contain %s", fe.Field(), fe.Param())
	case "min", "max", "gt":
		return fmt.Sprintf("%s out of range (%s %s)", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
