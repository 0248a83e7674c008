package entity

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxEmbeddingTextRunes bounds the text sent to the embedding provider.
// Longer texts are cut on a rune boundary.
const MaxEmbeddingTextRunes = 2000

const segmentSeparator = " | "

type field struct {
	label string
	// paths are tried in order; the first non-empty value wins
	paths  []string
	render func(attrs map[string]any) string
}

var embeddingFields = map[Collection][]field{
	Customers: {
		{label: "Name", render: customerName},
		{label: "Occupation", paths: []string{"occupation"}},
		{label: "City", paths: []string{"city", "address.city"}},
		{label: "Email domain", render: emailDomain},
	},
	Claims: {
		{label: "Description", paths: []string{"description"}},
		{label: "Damage type", paths: []string{"damageType", "type"}},
		{label: "Location", paths: []string{"location.address", "locationAddress", "location"}},
		{label: "Status", paths: []string{"status"}},
	},
	Policies: {
		{label: "Vehicle", render: vehicle},
		{label: "Coverage", paths: []string{"coverageType", "coverage"}},
		{label: "Policy type", paths: []string{"policyType"}},
	},
	Documents: {
		{label: "Title", paths: []string{"title", "fileName", "name"}},
		{label: "Category", paths: []string{"category"}},
		{label: "Tags", paths: []string{"tags"}},
		{label: "Content", paths: []string{"extractedText", "content"}},
	},
}

// BuildEmbeddingText renders the fixed per-collection field set of attrs
// into the normalized text that gets embedded. The output is deterministic
// for identical input.
func BuildEmbeddingText(c Collection, attrs map[string]any) string {
	fields := embeddingFields[c]
	segments := make([]string, 0, len(fields))
	for _, f := range fields {
		var v string
		if f.render != nil {
			v = f.render(attrs)
		} else {
			v = firstString(attrs, f.paths...)
		}
		v = normalizeSpace(v)
		if v == "" {
			continue
		}
		segments = append(segments, f.label+": "+v)
	}
	return TruncateRunes(strings.Join(segments, segmentSeparator), MaxEmbeddingTextRunes)
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Lookup resolves a dotted path such as "vehicle.make" in attrs.
func Lookup(attrs map[string]any, path string) (any, bool) {
	var cur any = attrs
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

func firstString(attrs map[string]any, paths ...string) string {
	for _, p := range paths {
		v, ok := Lookup(attrs, p)
		if !ok {
			continue
		}
		if s := stringify(v); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case bool:
		return strconv.FormatBool(tv)
	case []any:
		parts := make([]string, 0, len(tv))
		for _, item := range tv {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(tv, ", ")
	case map[string]any:
		// nested objects are only rendered through explicit paths
		return ""
	default:
		return fmt.Sprint(tv)
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func customerName(attrs map[string]any) string {
	full := strings.TrimSpace(firstString(attrs, "firstName") + " " + firstString(attrs, "lastName"))
	if full != "" {
		return full
	}
	return firstString(attrs, "name", "fullName")
}

func emailDomain(attrs map[string]any) string {
	email := firstString(attrs, "email")
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func vehicle(attrs map[string]any) string {
	parts := []string{
		firstString(attrs, "vehicle.year", "vehicleYear"),
		firstString(attrs, "vehicle.make", "vehicleMake"),
		firstString(attrs, "vehicle.model", "vehicleModel"),
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// StringAt renders the value at a dotted path as a string, or "" when the
// path is missing.
func StringAt(attrs map[string]any, path string) string {
	return firstString(attrs, path)
}
