// Package validate holds the primitive input guards that run ahead of rate
// limiting and authorization. Every violation is raised as a structured
// apperr error with a field-scoped message.
package validate

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/harborline/gatehouse/internal/apperr"
)

const (
	defaultMaxLength = 10000
	maxEmailLength   = 254
	maxURLLength     = 2048
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// StringOpts configures String. The zero value means: required, no minimum,
// 10000-character maximum, no pattern.
type StringOpts struct {
	Field     string
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	Optional  bool
}

// String trims the input and enforces required-ness, length bounds and the
// optional pattern, in that order. It returns the trimmed value.
func String(input string, opts StringOpts) (string, error) {
	field := opts.Field
	if field == "" {
		field = "value"
	}
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}

	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		if opts.Optional {
			return "", nil
		}
		return "", apperr.Newf(apperr.CodeValidationFailed, "%s is required", field)
	}
	if len(trimmed) < opts.MinLength {
		return "", apperr.Newf(apperr.CodeValidationFailed, "%s must be at least %d characters", field, opts.MinLength)
	}
	if len(trimmed) > maxLength {
		return "", apperr.Newf(apperr.CodeValidationFailed, "%s must be at most %d characters", field, maxLength)
	}
	if opts.Pattern != nil && !opts.Pattern.MatchString(trimmed) {
		return "", apperr.Newf(apperr.CodeValidationFailed, "%s format is invalid", field)
	}
	return trimmed, nil
}

// NumberOpts configures Number. Min and Max are inclusive bounds; nil means
// unbounded.
type NumberOpts struct {
	Field    string
	Min      *float64
	Max      *float64
	Integer  bool
	Optional bool
}

// Number accepts numeric values or numeric strings and returns the parsed
// float64. Integer inputs are rejected when they carry a fractional part and
// opts.Integer is set.
func Number(input any, opts NumberOpts) (float64, error) {
	field := opts.Field
	if field == "" {
		field = "value"
	}

	value, present, err := coerceNumber(input)
	if err != nil {
		return 0, apperr.Newf(apperr.CodeInvalidInput, "%s must be a number", field)
	}
	if !present {
		if opts.Optional {
			return 0, nil
		}
		return 0, apperr.Newf(apperr.CodeValidationFailed, "%s is required", field)
	}
	// ParseFloat accepts "NaN" and "Inf", and NaN compares false against
	// any bound, so non-finite values must be rejected explicitly.
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, apperr.Newf(apperr.CodeInvalidInput, "%s must be a finite number", field)
	}
	if opts.Integer && value != float64(int64(value)) {
		return 0, apperr.Newf(apperr.CodeValidationFailed, "%s must be an integer", field)
	}
	if opts.Min != nil && value < *opts.Min {
		return 0, apperr.Newf(apperr.CodeValidationFailed, "%s must be at least %v", field, *opts.Min)
	}
	if opts.Max != nil && value > *opts.Max {
		return 0, apperr.Newf(apperr.CodeValidationFailed, "%s must be at most %v", field, *opts.Max)
	}
	return value, nil
}

func coerceNumber(input any) (value float64, present bool, err error) {
	switch v := input.(type) {
	case nil:
		return 0, false, nil
	case int:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case float32:
		return float64(v), true, nil
	case float64:
		return v, true, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false, nil
		}
		parsed, parseErr := strconv.ParseFloat(trimmed, 64)
		if parseErr != nil {
			return 0, true, parseErr
		}
		return parsed, true, nil
	default:
		return 0, true, fmt.Errorf("validate: unsupported numeric type %T", input)
	}
}

// Email validates and normalizes an email address, returning it lower-cased.
func Email(input string) (string, error) {
	trimmed, err := String(input, StringOpts{
		Field:     "email",
		MaxLength: maxEmailLength,
	})
	if err != nil {
		return "", err
	}
	if !emailPattern.MatchString(trimmed) {
		return "", apperr.New(apperr.CodeValidationFailed, "email format is invalid")
	}
	return strings.ToLower(trimmed), nil
}

// URLOpts configures URL. An empty AllowedSchemes defaults to http and https.
type URLOpts struct {
	Optional       bool
	AllowedSchemes []string
}

// URL validates an absolute URL against the scheme allow-list and returns
// the trimmed value.
func URL(input string, opts URLOpts) (string, error) {
	trimmed, err := String(input, StringOpts{
		Field:     "url",
		MaxLength: maxURLLength,
		Optional:  opts.Optional,
	})
	if err != nil {
		return "", err
	}
	if trimmed == "" {
		return "", nil
	}
	parsed, parseErr := url.Parse(trimmed)
	if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", apperr.New(apperr.CodeInvalidInput, "url must be a valid absolute URL")
	}
	schemes := opts.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	for _, scheme := range schemes {
		if strings.EqualFold(parsed.Scheme, scheme) {
			return trimmed, nil
		}
	}
	return "", apperr.Newf(apperr.CodeValidationFailed, "url scheme %q is not allowed", parsed.Scheme)
}

// ID validates a uuid-shaped identifier and returns its canonical form.
func ID(input, field string) (string, error) {
	if field == "" {
		field = "id"
	}
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", apperr.Newf(apperr.CodeValidationFailed, "%s is required", field)
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", apperr.Newf(apperr.CodeInvalidInput, "%s must be a valid UUID", field)
	}
	return parsed.String(), nil
}
