package validate_test

import (
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/harborline/gatehouse/internal/apperr"
	"github.com/harborline/gatehouse/internal/validate"
)

func mustCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperr.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestString(t *testing.T) {
	got, err := validate.String("  hello  ", validate.StringOpts{Field: "title"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected trimmed value, got %q", got)
	}

	_, err = validate.String("   ", validate.StringOpts{Field: "title"})
	mustCode(t, err, apperr.CodeValidationFailed)

	got, err = validate.String("", validate.StringOpts{Field: "title", Optional: true})
	if err != nil || got != "" {
		t.Fatalf("optional empty input should pass, got %q err=%v", got, err)
	}

	_, err = validate.String("ab", validate.StringOpts{Field: "title", MinLength: 3})
	mustCode(t, err, apperr.CodeValidationFailed)

	_, err = validate.String(strings.Repeat("x", 20), validate.StringOpts{Field: "title", MaxLength: 10})
	mustCode(t, err, apperr.CodeValidationFailed)

	_, err = validate.String("no spaces allowed", validate.StringOpts{
		Field:   "slug",
		Pattern: regexp.MustCompile(`^[a-z-]+$`),
	})
	mustCode(t, err, apperr.CodeValidationFailed)

	// Required-ness wins over the minimum bound.
	_, err = validate.String("", validate.StringOpts{Field: "title", MinLength: 5})
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Fatalf("expected required message, got %v", err)
	}
}

func TestNumber(t *testing.T) {
	min := 1.0
	max := 10.0

	got, err := validate.Number("7", validate.NumberOpts{Field: "qty", Min: &min, Max: &max, Integer: true})
	if err != nil || got != 7 {
		t.Fatalf("expected 7, got %v err=%v", got, err)
	}

	_, err = validate.Number("seven", validate.NumberOpts{Field: "qty"})
	mustCode(t, err, apperr.CodeInvalidInput)

	_, err = validate.Number(3.5, validate.NumberOpts{Field: "qty", Integer: true})
	mustCode(t, err, apperr.CodeValidationFailed)

	_, err = validate.Number(0.5, validate.NumberOpts{Field: "qty", Min: &min})
	mustCode(t, err, apperr.CodeValidationFailed)

	_, err = validate.Number(11, validate.NumberOpts{Field: "qty", Max: &max})
	mustCode(t, err, apperr.CodeValidationFailed)

	_, err = validate.Number(nil, validate.NumberOpts{Field: "qty"})
	mustCode(t, err, apperr.CodeValidationFailed)

	got, err = validate.Number(nil, validate.NumberOpts{Field: "qty", Optional: true})
	if err != nil || got != 0 {
		t.Fatalf("optional missing number should pass, got %v err=%v", got, err)
	}

	// ParseFloat parses these, and NaN slips past any bound comparison.
	for _, input := range []any{"NaN", "Inf", "-Inf", "Infinity", math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = validate.Number(input, validate.NumberOpts{Field: "qty", Min: &min, Max: &max})
		mustCode(t, err, apperr.CodeInvalidInput)
	}
}

func TestEmail(t *testing.T) {
	got, err := validate.Email("  User@Example.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user@example.com" {
		t.Fatalf("expected lower-cased address, got %q", got)
	}

	_, err = validate.Email("not-an-email")
	mustCode(t, err, apperr.CodeValidationFailed)

	_, err = validate.Email(strings.Repeat("a", 250) + "@example.com")
	mustCode(t, err, apperr.CodeValidationFailed)
}

func TestURL(t *testing.T) {
	got, err := validate.URL("https://marketplace.example/item/1", validate.URLOpts{})
	if err != nil || got != "https://marketplace.example/item/1" {
		t.Fatalf("expected url to pass, got %q err=%v", got, err)
	}

	_, err = validate.URL("ftp://files.example/archive", validate.URLOpts{})
	mustCode(t, err, apperr.CodeValidationFailed)

	got, err = validate.URL("ftp://files.example/archive", validate.URLOpts{AllowedSchemes: []string{"ftp"}})
	if err != nil || got == "" {
		t.Fatalf("ftp should pass with explicit allow-list, err=%v", err)
	}

	_, err = validate.URL("not a url", validate.URLOpts{})
	mustCode(t, err, apperr.CodeInvalidInput)

	got, err = validate.URL("", validate.URLOpts{Optional: true})
	if err != nil || got != "" {
		t.Fatalf("optional empty url should pass, err=%v", err)
	}
}

func TestID(t *testing.T) {
	got, err := validate.ID(" 9F3B0C1E-43DB-4E8F-9D08-30ACF0A9C5B1 ", "userId")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "9f3b0c1e-43db-4e8f-9d08-30acf0a9c5b1" {
		t.Fatalf("expected canonical uuid, got %q", got)
	}

	_, err = validate.ID("nope", "userId")
	mustCode(t, err, apperr.CodeInvalidInput)
}
