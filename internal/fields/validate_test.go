package fields

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func fieldErrorNames(t *testing.T, err error) []string {
	t.Helper()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	names := make([]string, len(verr.Fields))
	for i, fe := range verr.Fields {
		names[i] = fe.Name
	}
	return names
}

func TestCoerceTextAndTextarea(t *testing.T) {
	defs := Set{
		{Name: "name", Kind: KindText, Required: true, MaxLength: 5},
		{Name: "notes", Kind: KindTextarea},
	}

	values, err := ValidateAndCoerce(defs, map[string]any{"name": "ok", "notes": "a\nb"}, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", values["name"])
	assert.Equal(t, "a\nb", values["notes"])

	_, err = ValidateAndCoerce(defs, map[string]any{"name": "toolong!"}, "")
	assert.Equal(t, []string{"name"}, fieldErrorNames(t, err))

	_, err = ValidateAndCoerce(defs, map[string]any{"name": 42.0}, "")
	assert.Equal(t, []string{"name"}, fieldErrorNames(t, err))

	// MaxLength counts characters, not bytes.
	values, err = ValidateAndCoerce(defs, map[string]any{"name": "héllô"}, "")
	require.NoError(t, err)
	assert.Equal(t, "héllô", values["name"])
}

func TestCoerceNumber(t *testing.T) {
	defs := Set{{Name: "n", Kind: KindNumber, Required: true, MinNumber: floatPtr(1), MaxNumber: floatPtr(10)}}

	for raw, want := range map[any]float64{
		"7":   7,
		" 2 ": 2,
		3.5:   3.5,
	} {
		values, err := ValidateAndCoerce(defs, map[string]any{"n": raw}, "")
		require.NoError(t, err, "raw %v", raw)
		assert.Equal(t, want, values["n"])
	}

	for _, raw := range []any{"abc", "0", "11", true} {
		_, err := ValidateAndCoerce(defs, map[string]any{"n": raw}, "")
		assert.Error(t, err, "raw %v", raw)
	}
}

func TestCoerceBoolean(t *testing.T) {
	defs := Set{{Name: "b", Kind: KindBoolean, Required: true}}

	truthy := []any{true, "true", "Yes", "on"}
	for _, raw := range truthy {
		values, err := ValidateAndCoerce(defs, map[string]any{"b": raw}, "")
		require.NoError(t, err)
		assert.Equal(t, true, values["b"], "raw %v", raw)
	}

	falsy := []any{false, "false", "No", "off", "0"}
	for _, raw := range falsy {
		values, err := ValidateAndCoerce(defs, map[string]any{"b": raw}, "")
		require.NoError(t, err)
		assert.Equal(t, false, values["b"], "raw %v", raw)
	}

	_, err := ValidateAndCoerce(defs, map[string]any{"b": "maybe"}, "")
	assert.Error(t, err)
}

func TestCoerceSelect(t *testing.T) {
	defs := Set{{Name: "env", Kind: KindSelect, Required: true, Choices: []string{"dev", "staging", "prod"}}}

	values, err := ValidateAndCoerce(defs, map[string]any{"env": "staging"}, "")
	require.NoError(t, err)
	assert.Equal(t, "staging", values["env"])

	_, err = ValidateAndCoerce(defs, map[string]any{"env": "qa"}, "")
	assert.Equal(t, []string{"env"}, fieldErrorNames(t, err))
}

func TestMultiSelectPreservesSubmissionOrder(t *testing.T) {
	defs := Set{{Name: "targets", Kind: KindMultiSelect, Choices: []string{"A", "B", "C"}}}

	values, err := ValidateAndCoerce(defs, map[string]any{"targets": []any{"B", "A"}}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, values["targets"])
}

func TestMultiSelectRejectsDuplicatesAndUnknown(t *testing.T) {
	defs := Set{{Name: "targets", Kind: KindMultiSelect, Choices: []string{"A", "B"}}}

	_, err := ValidateAndCoerce(defs, map[string]any{"targets": []any{"A", "A"}}, "")
	assert.Error(t, err)

	_, err = ValidateAndCoerce(defs, map[string]any{"targets": []any{"A", "Z"}}, "")
	assert.Error(t, err)
}

func TestRequiredMissingNamesExactlyThatField(t *testing.T) {
	defs := Set{
		{Name: "env", Kind: KindText, Required: true},
		{Name: "notes", Kind: KindText},
	}

	values, err := ValidateAndCoerce(defs, map[string]any{}, "")
	assert.Nil(t, values, "no partial result on failure")
	assert.Equal(t, []string{"env"}, fieldErrorNames(t, err))
}

func TestDefaultsFillAbsentValues(t *testing.T) {
	defs := Set{
		{Name: "env", Kind: KindSelect, Required: true, Default: "dev", Choices: []string{"dev", "prod"}},
		{Name: "count", Kind: KindNumber, Default: "3"},
		{Name: "extra", Kind: KindText},
	}

	values, err := ValidateAndCoerce(defs, map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, "dev", values["env"])
	assert.Equal(t, 3.0, values["count"])
	assert.Equal(t, "", values["extra"])
}

func TestAllFailuresAggregated(t *testing.T) {
	defs := Set{
		{Name: "a", Kind: KindText, Required: true},
		{Name: "b", Kind: KindNumber, Required: true},
		{Name: "c", Kind: KindText},
	}

	_, err := ValidateAndCoerce(defs, map[string]any{"b": "nope", "c": "fine"}, "")
	assert.ElementsMatch(t, []string{"a", "b"}, fieldErrorNames(t, err))
}

func TestCoerceIsDeterministic(t *testing.T) {
	defs := Set{
		{Name: "env", Kind: KindSelect, Required: true, Choices: []string{"dev", "prod"}},
		{Name: "replicas", Kind: KindNumber},
		{Name: "targets", Kind: KindMultiSelect, Choices: []string{"A", "B", "C"}},
	}
	raw := map[string]any{"env": "prod", "replicas": "2", "targets": []any{"C", "A"}}

	first, err := ValidateAndCoerce(defs, raw, "")
	require.NoError(t, err)
	second, err := ValidateAndCoerce(defs, raw, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func stageFile(t *testing.T, staging, field, name string) string {
	t.Helper()

	dir := filepath.Join(staging, field)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o640))
	return path
}

func TestFileFieldResolvesToStagedFile(t *testing.T) {
	staging := t.TempDir()
	defs := Set{{Name: "report", Kind: KindFile, Required: true}}

	path := stageFile(t, staging, "report", "report.txt")

	values, err := ValidateAndCoerce(defs, map[string]any{}, staging)
	require.NoError(t, err)
	assert.Equal(t, path, values["report"])
}

func TestFileFieldRejectsMultipleUploads(t *testing.T) {
	staging := t.TempDir()
	defs := Set{{Name: "report", Kind: KindFile, Required: true}}

	stageFile(t, staging, "report", "one.txt")
	stageFile(t, staging, "report", "two.txt")

	_, err := ValidateAndCoerce(defs, map[string]any{}, staging)
	assert.Equal(t, []string{"report"}, fieldErrorNames(t, err))
}

func TestMultiFileFieldResolvesToDirectory(t *testing.T) {
	staging := t.TempDir()
	defs := Set{{Name: "logs", Kind: KindMultiFile, Required: true}}

	stageFile(t, staging, "logs", "a.log")
	stageFile(t, staging, "logs", "b.log")

	values, err := ValidateAndCoerce(defs, map[string]any{}, staging)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(staging, "logs"), values["logs"])
}

func TestRequiredFileMissing(t *testing.T) {
	staging := t.TempDir()
	defs := Set{{Name: "report", Kind: KindFile, Required: true}}

	_, err := ValidateAndCoerce(defs, map[string]any{}, staging)
	assert.Equal(t, []string{"report"}, fieldErrorNames(t, err))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Fields[0].Reason)
}

func TestAcceptedFileTypes(t *testing.T) {
	tests := []struct {
		name     string
		accepted []string
		filename string
		wantOK   bool
	}{
		{"extension match", []string{".pdf"}, "doc.pdf", true},
		{"extension mismatch", []string{".pdf"}, "doc.txt", false},
		{"exact media type", []string{"image/png"}, "pic.png", true},
		{"exact media type mismatch", []string{"image/png"}, "pic.gif", false},
		{"wildcard subtype", []string{"image/*"}, "pic.gif", true},
		{"wildcard subtype mismatch", []string{"image/*"}, "doc.pdf", false},
		{"any of several", []string{".csv", "image/*"}, "data.csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staging := t.TempDir()
			defs := Set{{Name: "f", Kind: KindFile, Required: true, AcceptedFileTypes: tt.accepted}}
			stageFile(t, staging, "f", tt.filename)

			_, err := ValidateAndCoerce(defs, map[string]any{}, staging)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
