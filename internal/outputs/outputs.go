// Package outputs hands collected values back to the calling
// pipeline: a staged results file plus GITHUB_OUTPUT key=value lines.
package outputs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pratikwayal01/bore-interactive-inputs/internal/fields"
)

// DefaultResultsFile is where a collect run stages its results for
// the outputs subcommand.
const DefaultResultsFile = "/tmp/bore-interactive-results.json"

const heredocDelimiter = "EOF"

// Write emits the values in GITHUB_OUTPUT format: one key=value line
// per field, with a key<<EOF heredoc for multiline values. Keys are
// written in sorted order so output is deterministic.
func Write(w io.Writer, values fields.Values) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rendered, err := Render(values[key])
		if err != nil {
			return fmt.Errorf("output %q: %w", key, err)
		}

		if strings.Contains(rendered, "\n") {
			if _, err := fmt.Fprintf(w, "%s<<%s\n%s\n%s\n", key, heredocDelimiter, rendered, heredocDelimiter); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s=%s\n", key, rendered); err != nil {
			return err
		}
	}

	return nil
}

// Render turns one coerced value into its output string: booleans
// lowercase, numbers without a trailing ".0" for integral values,
// lists and maps as JSON.
func Render(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	default:
		blob, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(blob), nil
	}
}

// AppendGitHubOutput appends the values to the file GITHUB_OUTPUT
// points at. Missing env var is not an error outside Actions.
func AppendGitHubOutput(values fields.Values) error {
	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return Write(f, values)
}

// SaveResults stages the values as JSON for a later outputs run.
func SaveResults(path string, values fields.Values) error {
	blob, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o640)
}

// LoadResults reads back a staged results file.
func LoadResults(path string) (fields.Values, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var values fields.Values
	if err := json.Unmarshal(blob, &values); err != nil {
		return nil, fmt.Errorf("results file %s: %w", path, err)
	}
	return values, nil
}
