// Package toolargs decodes tool-call argument payloads tolerantly.
//
// Tool arguments arrive as model-produced JSON and are frequently malformed,
// partially streamed, or shaped differently per provider. Every accessor here
// is total: a missing key, wrong type, or invalid payload yields a zero value,
// never an error.
package toolargs

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Args wraps a raw argument payload with never-failing accessors.
type Args struct {
	root gjson.Result
}

// Parse decodes a raw JSON payload. Invalid JSON yields Args whose accessors
// all return zero values.
func Parse(raw string) Args {
	if !gjson.Valid(raw) {
		return Args{}
	}
	return Args{root: gjson.Parse(raw)}
}

// Valid reports whether the payload held any decodable JSON.
func (a Args) Valid() bool {
	return a.root.Exists()
}

// Str returns the value under the first present key, rendered as a string.
func (a Args) Str(keys ...string) string {
	for _, k := range keys {
		if v := a.root.Get(k); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// Int returns the value under the first present key as an int.
func (a Args) Int(keys ...string) int {
	for _, k := range keys {
		if v := a.root.Get(k); v.Exists() {
			return int(v.Int())
		}
	}
	return 0
}

// Bool returns the value under the first present key as a bool.
func (a Args) Bool(keys ...string) bool {
	for _, k := range keys {
		if v := a.root.Get(k); v.Exists() {
			return v.Bool()
		}
	}
	return false
}

// List returns the array under the first present key, or the root array when
// no key is given and the payload itself is an array.
func (a Args) List(keys ...string) []gjson.Result {
	if len(keys) == 0 {
		if a.root.IsArray() {
			return a.root.Array()
		}
		return nil
	}
	for _, k := range keys {
		if v := a.root.Get(k); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

// Fields returns the top-level object keys and their values rendered as
// strings, in document order. Non-object payloads yield nil.
func (a Args) Fields() []Field {
	if !a.root.IsObject() {
		return nil
	}
	var fields []Field
	a.root.ForEach(func(key, value gjson.Result) bool {
		fields = append(fields, Field{Name: key.String(), Value: value.String()})
		return true
	})
	return fields
}

// Field is one top-level argument rendered for display.
type Field struct {
	Name  string
	Value string
}

// summaryFields are well-known argument names tried in order when deriving a
// one-line tool summary.
var summaryFields = []string{
	"query", "command", "path", "file_path", "filePath", "filename",
	"url", "pattern", "prompt", "intent", "name", "title", "text",
}

// Summary derives a short human-readable summary of the payload: the value of
// the first well-known field, or a "Field: value" listing as fallback.
func (a Args) Summary() string {
	for _, k := range summaryFields {
		if v := a.root.Get(k); v.Exists() {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	fields := a.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		parts = append(parts, FriendlyFieldName(f.Name)+": "+v)
	}
	return strings.Join(parts, ", ")
}

// FriendlyToolName turns a wire tool name into a display name:
// "lumi_search" becomes "Search", "replace_string_in_file" becomes
// "Replace String In File".
func FriendlyToolName(name string) string {
	name = strings.TrimPrefix(name, "lumi_")
	name = strings.TrimPrefix(name, "mcp_")
	words := splitIdentifier(name)
	if len(words) == 0 {
		return name
	}
	return strings.Join(words, " ")
}

// FriendlyFieldName title-cases an argument key for the fallback listing.
func FriendlyFieldName(name string) string {
	words := splitIdentifier(name)
	if len(words) == 0 {
		return name
	}
	return strings.Join(words, " ")
}

// splitIdentifier splits snake_case, kebab-case and camelCase identifiers
// into title-cased words.
func splitIdentifier(s string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) == 0 {
			return
		}
		w := string(current)
		words = append(words, strings.ToUpper(w[:1])+strings.ToLower(w[1:]))
		current = current[:0]
	}
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case r >= 'A' && r <= 'Z':
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return words
}
