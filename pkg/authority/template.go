package authority

import (
	"strings"

	"github.com/ondata/confini/pkg/errors"
)

// Template is a URI pattern with {FIELD} placeholders.
type Template struct {
	raw    string
	parts  []string
	fields []string
}

// ParseTemplate parses a pattern such as
// https://example.org/cities/{CODISTAT}-({DATAISTITUZIONE}).
func ParseTemplate(raw string) (Template, error) {
	t := Template{raw: raw}
	rest := raw
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return Template{}, errors.NewValidationError("authority", raw, "unbalanced '}'")
			}
			t.parts = append(t.parts, rest)
			return t, nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return Template{}, errors.NewValidationError("authority", raw, "unterminated placeholder")
		}
		field := rest[open+1 : open+closing]
		if field == "" || strings.ContainsAny(field, "{") {
			return Template{}, errors.NewValidationError("authority", raw, "invalid placeholder")
		}
		if strings.IndexByte(rest[:open], '}') >= 0 {
			return Template{}, errors.NewValidationError("authority", raw, "unbalanced '}'")
		}
		t.parts = append(t.parts, rest[:open])
		t.fields = append(t.fields, field)
		rest = rest[open+closing+1:]
	}
}

// String returns the raw pattern.
func (t Template) String() string {
	return t.raw
}

// Fields returns the placeholder names in order of appearance.
func (t Template) Fields() []string {
	return append([]string(nil), t.fields...)
}

// Render substitutes every placeholder with the value returned by lookup.
// A field lookup cannot resolve is a SchemaError.
func (t Template) Render(table string, lookup func(field string) (string, bool)) (string, error) {
	var b strings.Builder
	for i, field := range t.fields {
		b.WriteString(t.parts[i])
		v, ok := lookup(field)
		if !ok {
			return "", errors.NewSchemaError(table, field, "authority template field not found")
		}
		b.WriteString(v)
	}
	b.WriteString(t.parts[len(t.parts)-1])
	return b.String(), nil
}
