package analysis

import (
	"strings"
	"unicode"
)

type runeClass int

const (
	classOther runeClass = iota
	classUpper
	classLower
	classDigit
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsUpper(r):
		return classUpper
	case unicode.IsLower(r):
		return classLower
	case unicode.IsDigit(r):
		return classDigit
	}
	return classOther
}

// splitWords breaks an identifier into words. Separators are any non
// alphanumeric rune; a word also ends at a lower-to-upper change, at a
// letter-digit change, and before the last capital of an acronym that is
// followed by a lowercase letter ("XMLHttp" splits into "XML" and "Http").
func splitWords(s string) []string {
	runes := []rune(s)
	var words []string
	start := -1

	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		c := classify(r)
		if c == classOther {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := classify(runes[i-1])
		switch {
		case prev == classLower && c == classUpper:
			flush(i)
			start = i
		case (prev == classDigit) != (c == classDigit):
			flush(i)
			start = i
		case prev == classUpper && c == classUpper &&
			i+1 < len(runes) && classify(runes[i+1]) == classLower:
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return words
}

// CamelCase converts an identifier to lower camel case: the first word is
// lowercased and every following word is capitalized.
func CamelCase(s string) string {
	words := splitWords(s)
	var b strings.Builder
	for i, w := range words {
		lower := []rune(strings.ToLower(w))
		if i > 0 {
			lower[0] = unicode.ToUpper(lower[0])
		}
		b.WriteString(string(lower))
	}
	return b.String()
}

// NormalizeKeys returns a copy of v with every object key converted to
// camel case, recursively. originals, if not nil, records the first source
// key seen for each converted key.
func NormalizeKeys(v any, originals map[string]string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			ck := CamelCase(k)
			if originals != nil {
				if _, seen := originals[ck]; !seen && ck != k {
					originals[ck] = k
				}
			}
			out[ck] = NormalizeKeys(inner, originals)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = NormalizeKeys(inner, originals)
		}
		return out
	}
	return v
}

// PascalKeys converts camel-case keys to the upper camel case CloudFormation
// uses for resource properties. Keys found in originals are restored
// verbatim so acronyms survive the round trip.
func PascalKeys(v any, originals map[string]string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[pascal(k, originals)] = PascalKeys(inner, originals)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = PascalKeys(inner, originals)
		}
		return out
	}
	return v
}

// acronyms are the words QuickSight property names spell in capitals, as in
// KPIVisual and CustomActionURLOperation.
var acronyms = map[string]bool{
	"kpi": true,
	"url": true,
}

func pascal(k string, originals map[string]string) string {
	if orig, ok := originals[k]; ok && isUpperFirst(orig) {
		return orig
	}
	var b strings.Builder
	for _, w := range splitWords(k) {
		if acronyms[strings.ToLower(w)] {
			b.WriteString(strings.ToUpper(w))
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

func isUpperFirst(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
