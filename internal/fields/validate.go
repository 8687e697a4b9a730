package fields

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Values maps field names to coerced, typed values. File fields
// resolve to the staged file path, multifile fields to the field's
// staging subdirectory.
type Values map[string]any

// FieldError is a single per-field validation failure.
type FieldError struct {
	Name   string
	Reason string
}

func (e FieldError) Error() string {
	return e.Name + ": " + e.Reason
}

// ValidationError aggregates every failed field of one submission.
// A submission is accepted or rejected as a whole.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	reasons := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		reasons[i] = fe.Error()
	}
	return "invalid submission: " + strings.Join(reasons, "; ")
}

func (e *ValidationError) add(name, reason string) {
	e.Fields = append(e.Fields, FieldError{Name: name, Reason: reason})
}

var boolTokens = map[string]bool{
	"true": true, "yes": true, "1": true, "on": true,
	"false": false, "no": false, "0": false, "off": false,
}

// ValidateAndCoerce turns a raw wire submission into typed values.
// Raw values come from decoded JSON, so strings, bools, float64 and
// []any are the expected shapes. File kinds are resolved against the
// staging directory instead of the raw mapping. All fields are checked
// and every failure reported; no partial result is ever returned.
func ValidateAndCoerce(defs Set, raw map[string]any, stagingDir string) (Values, error) {
	verr := &ValidationError{}
	out := make(Values, len(defs))

	for _, def := range defs {
		if def.Kind.IsFile() {
			val, reason := coerceFiles(def, stagingDir)
			if reason != "" {
				verr.add(def.Name, reason)
				continue
			}
			if val == "" {
				if def.Required {
					verr.add(def.Name, "required")
					continue
				}
				out[def.Name] = ""
				continue
			}
			out[def.Name] = val
			continue
		}

		rv, present := raw[def.Name]
		if !present || isEmpty(rv) {
			if def.Default != nil {
				rv = def.Default
			} else if def.Required {
				verr.add(def.Name, "required")
				continue
			} else {
				out[def.Name] = zeroValue(def.Kind)
				continue
			}
		}

		val, reason := coerceValue(def, rv)
		if reason != "" {
			verr.add(def.Name, reason)
			continue
		}
		out[def.Name] = val
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func zeroValue(kind Kind) any {
	switch kind {
	case KindBoolean:
		return false
	case KindMultiSelect:
		return []string{}
	default:
		return ""
	}
}

func coerceValue(def Definition, raw any) (any, string) {
	switch def.Kind {
	case KindText, KindTextarea:
		return coerceText(def, raw)
	case KindNumber:
		return coerceNumber(def, raw)
	case KindBoolean:
		return coerceBool(raw)
	case KindSelect:
		return coerceSelect(def, raw)
	case KindMultiSelect:
		return coerceMultiSelect(def, raw)
	}
	return nil, "unknown type"
}

func coerceText(def Definition, raw any) (any, string) {
	s, ok := raw.(string)
	if !ok {
		return nil, "expected a string"
	}
	if def.MaxLength > 0 && utf8.RuneCountInString(s) > def.MaxLength {
		return nil, fmt.Sprintf("longer than %d characters", def.MaxLength)
	}
	return s, ""
}

func coerceNumber(def Definition, raw any) (any, string) {
	var n float64
	switch t := raw.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, "not a number"
		}
		n = parsed
	default:
		return nil, "not a number"
	}

	if def.MinNumber != nil && n < *def.MinNumber {
		return nil, fmt.Sprintf("below minimum %v", *def.MinNumber)
	}
	if def.MaxNumber != nil && n > *def.MaxNumber {
		return nil, fmt.Sprintf("above maximum %v", *def.MaxNumber)
	}
	return n, ""
}

func coerceBool(raw any) (any, string) {
	switch t := raw.(type) {
	case bool:
		return t, ""
	case string:
		b, ok := boolTokens[strings.ToLower(strings.TrimSpace(t))]
		if !ok {
			return nil, "not a boolean"
		}
		return b, ""
	}
	return nil, "not a boolean"
}

func coerceSelect(def Definition, raw any) (any, string) {
	s, ok := raw.(string)
	if !ok {
		return nil, "expected a string"
	}
	for _, choice := range def.Choices {
		if s == choice {
			return s, ""
		}
	}
	return nil, fmt.Sprintf("%q is not one of the choices", s)
}

// coerceMultiSelect preserves submission order, not schema order.
func coerceMultiSelect(def Definition, raw any) (any, string) {
	var items []string
	switch t := raw.(type) {
	case []string:
		items = t
	case []any:
		items = make([]string, 0, len(t))
		for _, v := range t {
			s, ok := v.(string)
			if !ok {
				return nil, "expected a list of strings"
			}
			items = append(items, s)
		}
	default:
		return nil, "expected a list"
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, dup := seen[s]; dup {
			return nil, fmt.Sprintf("duplicate choice %q", s)
		}
		seen[s] = struct{}{}

		valid := false
		for _, choice := range def.Choices {
			if s == choice {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Sprintf("%q is not one of the choices", s)
		}
		out = append(out, s)
	}

	return out, ""
}

// coerceFiles resolves a file field against its staging subdirectory.
// A single-file field yields the path of its one staged file, a
// multifile field yields the subdirectory so the caller can enumerate
// its contents. An empty return with no reason means nothing was
// uploaded.
func coerceFiles(def Definition, stagingDir string) (string, string) {
	dir := filepath.Join(stagingDir, def.Name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ""
		}
		return "", "staged files unreadable"
	}

	files := make([]string, 0, len(entries))
	for _, ent := range entries {
		if !ent.IsDir() {
			files = append(files, ent.Name())
		}
	}
	if len(files) == 0 {
		return "", ""
	}

	for _, name := range files {
		if reason := checkFileType(def, name); reason != "" {
			return "", reason
		}
	}

	if def.Kind == KindFile {
		if len(files) > 1 {
			return "", "expected a single file"
		}
		return filepath.Join(dir, files[0]), ""
	}
	return dir, ""
}

// checkFileType matches a staged file against the accepted type
// patterns: a file extension (".pdf"), an exact media type
// ("image/png") or a wildcard subtype ("image/*"). The declared type
// is derived from the file extension, as senders self-report it.
func checkFileType(def Definition, filename string) string {
	if len(def.AcceptedFileTypes) == 0 {
		return ""
	}

	ext := filepath.Ext(filename)
	declared := mime.TypeByExtension(ext)
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}

	for _, pattern := range def.AcceptedFileTypes {
		switch {
		case strings.HasPrefix(pattern, "."):
			if strings.EqualFold(ext, pattern) {
				return ""
			}
		case strings.HasSuffix(pattern, "/*"):
			if declared != "" && strings.HasPrefix(declared, strings.TrimSuffix(pattern, "*")) {
				return ""
			}
		default:
			if declared == pattern {
				return ""
			}
		}
	}

	return fmt.Sprintf("%q does not match accepted types", filename)
}
