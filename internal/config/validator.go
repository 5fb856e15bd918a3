package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks struct tags and the cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if c.Store.Backend == BackendRedis && c.Redis.Addr == "" {
		return errors.New("redis.addr: required when store.backend is redis")
	}
	if c.Store.Backend != BackendSqlite && c.Store.UsersFile == "" {
		return errors.New("store.users_file: required unless store.backend is sqlite")
	}
	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		return errors.New("admin: username and password must be set together")
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := fieldPath(e.Namespace())
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s: is required", field)
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %q", field, e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("%s: must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s: must be at most %s", field, e.Param())
	case "ltefield":
		return fmt.Sprintf("%s: must not exceed session.ttl_minutes", field)
	case "hostname_port":
		return fmt.Sprintf("%s: must be host:port, got %q", field, e.Value())
	default:
		return fmt.Sprintf("%s: failed %s validation", field, e.Tag())
	}
}

// fieldPath turns "Config.Session.TTLMinutes" into "session.ttl_minutes".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	switch s {
	case "TTLMinutes":
		return "ttl_minutes"
	case "DB":
		return "db"
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
