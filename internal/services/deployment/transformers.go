package deployment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

var (
	slashRuns   = regexp.MustCompile(`/+`)
	templateVar = regexp.MustCompile(`\{([^{}]+)\}`)
)

// ExtractUsername extracts the local part of an email address.
// "john.doe@example.com" -> "john.doe".
func ExtractUsername(email string) string {
	if email == "" || !strings.Contains(email, "@") {
		return email
	}

	return strings.SplitN(email, "@", 2)[0]
}

// ToBool interprets common string spellings of booleans.
func ToBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1", "on":
			return true
		case "false", "no", "n", "0", "off", "":
			return false
		}
	}

	s := fmt.Sprint(value)

	b, err := strconv.ParseBool(s)
	if err != nil {
		return s != ""
	}

	return b
}

// ToInt converts a value to an int, nil on failure.
func ToInt(value any) any {
	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}

	return int(f)
}

// ToFloat converts a value to a float64, nil on failure.
func ToFloat(value any) any {
	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}

	return f
}

// Split splits a string into trimmed parts.
func Split(value, separator string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, separator)
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}

	return out
}

// NormalizePath strips surrounding slashes and collapses slash runs.
func NormalizePath(path string) string {
	path = strings.TrimSpace(strings.Trim(path, "/"))
	return slashRuns.ReplaceAllString(path, "/")
}

// SubstituteTemplate replaces {var} placeholders with context values,
// left-to-right. Unknown variables substitute as empty strings, which is what
// makes unresolved forward references (and cycles) degrade to null instead of
// erroring.
func SubstituteTemplate(template string, context map[string]any) string {
	return templateVar.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]

		value, ok := context[name]
		if !ok || value == nil {
			return ""
		}

		return fmt.Sprint(value)
	})
}

// ApplyTransformation applies a named transformation to a value.
func ApplyTransformation(value any, name string) any {
	if value == nil {
		return nil
	}

	switch name {
	case "extract_username":
		return ExtractUsername(fmt.Sprint(value))
	case "to_lower":
		return strings.ToLower(fmt.Sprint(value))
	case "to_upper":
		return strings.ToUpper(fmt.Sprint(value))
	case "strip":
		return strings.TrimSpace(fmt.Sprint(value))
	case "to_bool":
		return ToBool(value)
	case "to_int":
		return ToInt(value)
	case "to_float":
		return ToFloat(value)
	case "split":
		return Split(fmt.Sprint(value), ",")
	case "normalize_path":
		return NormalizePath(fmt.Sprint(value))
	case "to_snake_case":
		return strcase.ToSnake(fmt.Sprint(value))
	case "to_camel_case":
		return strcase.ToLowerCamel(fmt.Sprint(value))
	default:
		return value
	}
}

// IsNullValue reports whether a raw value should be treated as null.
// Booleans and numbers are never null.
func IsNullValue(value any, nullValues []string) bool {
	switch value.(type) {
	case nil:
		return true
	case bool, int, int64, float64:
		return false
	}

	s := fmt.Sprint(value)

	for _, nv := range nullValues {
		if s == nv {
			return true
		}
	}

	return false
}
