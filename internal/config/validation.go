package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

//go:embed schema/config.schema.json
var schemaJSON []byte

const schemaURL = "config.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateConfig performs comprehensive validation of the configuration.
// Field checks run first; the JSON schema then catches anything they miss.
// Warnings alone do not fail validation.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateAutoSpace(&c.AutoSpace)...)
	errs = append(errs, validateFilters(&c.Filters)...)
	errs = append(errs, validateDictionary(c.Dictionary)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateIBus(&c.IBus)...)

	if errs.HasErrors() {
		return errs.Errors()
	}

	if schemaErrs := validateSchema(c); len(schemaErrs) > 0 {
		return schemaErrs
	}
	return nil
}

func validateAutoSpace(a *AutoSpaceConfig) ValidationErrors {
	if a.ASCIIModeOption == "" {
		return ValidationErrors{*RequiredFieldError("auto_space.ascii_mode_option")}
	}
	return nil
}

func validateFilters(f *FiltersConfig) ValidationErrors {
	var errs ValidationErrors

	if len(f.Stages) == 0 {
		errs = append(errs, ValidationError{
			Field:   "filters.stages",
			Message: "at least one stage is required",
		})
	}

	seen := make(map[string]bool, len(f.Stages))
	for i, name := range f.Stages {
		field := fmt.Sprintf("filters.stages[%d]", i)
		klass, ns, hasNS := strings.Cut(name, "@")
		switch {
		case klass == "":
			errs = append(errs, ValidationError{Field: field, Message: "stage name is empty"})
		case hasNS && ns == "":
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("stage %q has an empty namespace", name)})
		case seen[name]:
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate stage %q", name)})
		}
		seen[name] = true
	}

	if f.PageSize < 1 || f.PageSize > 10 {
		errs = append(errs, *RangeError("filters.page_size", 1, 10))
	}

	return errs
}

func validateDictionary(d map[string][]string) ValidationErrors {
	var errs ValidationErrors
	for code, phrases := range d {
		if strings.TrimSpace(code) == "" {
			errs = append(errs, ValidationError{
				Field:   "dictionary",
				Message: "dictionary code is empty",
			})
			continue
		}
		if len(phrases) == 0 {
			errs = append(errs, ValidationError{
				Field:   "dictionary." + code,
				Message: "code has no phrases",
			})
		}
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

func validateIBus(i *IBusConfig) ValidationErrors {
	var errs ValidationErrors
	if i.BusName == "" {
		errs = append(errs, *RequiredFieldError("ibus.bus_name"))
	}
	if i.EngineName == "" {
		errs = append(errs, *RequiredFieldError("ibus.engine_name"))
	}
	return errs
}

// validateSchema checks the JSON form of c against the embedded schema.
func validateSchema(c *Config) ValidationErrors {
	schema, err := configSchema()
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: fmt.Sprintf("encode config: %v", err)}}
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return ValidationErrors{{Field: "schema", Message: fmt.Sprintf("decode config: %v", err)}}
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}
	return schemaLeaves(verr, nil)
}

func schemaLeaves(e *jsonschema.ValidationError, out ValidationErrors) ValidationErrors {
	if len(e.Causes) == 0 {
		return append(out, ValidationError{
			Field:   pointerToField(e.InstanceLocation),
			Message: e.Message,
		})
	}
	for _, cause := range e.Causes {
		out = schemaLeaves(cause, out)
	}
	return out
}

// pointerToField turns a JSON pointer such as "/logging/level" into
// "logging.level".
func pointerToField(ptr string) string {
	field := strings.ReplaceAll(strings.TrimPrefix(ptr, "/"), "/", ".")
	if field == "" {
		return "config"
	}
	return field
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	return strings.HasPrefix(e.Field, "dictionary.")
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
