package fields

import (
	"errors"
	"fmt"
)

// Kind is the widget type of a requested input.
type Kind string

const (
	KindText        Kind = "text"
	KindTextarea    Kind = "textarea"
	KindNumber      Kind = "number"
	KindBoolean     Kind = "boolean"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multiselect"
	KindFile        Kind = "file"
	KindMultiFile   Kind = "multifile"
)

var ErrNoFields = errors.New("no fields defined")

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindTextarea, KindNumber, KindBoolean,
		KindSelect, KindMultiSelect, KindFile, KindMultiFile:
		return true
	}
	return false
}

// IsChoice reports whether the kind carries a fixed choices list.
func (k Kind) IsChoice() bool {
	return k == KindSelect || k == KindMultiSelect
}

// IsFile reports whether submitted values arrive as staged uploads
// rather than inline form values.
func (k Kind) IsFile() bool {
	return k == KindFile || k == KindMultiFile
}

// Definition describes one requested input.
type Definition struct {
	Name        string `yaml:"name" json:"name"`
	Kind        Kind   `yaml:"type" json:"type"`
	Display     string `yaml:"display,omitempty" json:"display,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`

	MaxLength         int      `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	MinNumber         *float64 `yaml:"minNumber,omitempty" json:"minNumber,omitempty"`
	MaxNumber         *float64 `yaml:"maxNumber,omitempty" json:"maxNumber,omitempty"`
	Choices           []string `yaml:"choices,omitempty" json:"choices,omitempty"`
	AcceptedFileTypes []string `yaml:"acceptedFileTypes,omitempty" json:"acceptedFileTypes,omitempty"`
}

// Label returns the display name shown to the operator.
func (d Definition) Label() string {
	if d.Display != "" {
		return d.Display
	}
	return d.Name
}

// Set is an ordered list of field definitions. Order matters for
// display only; lookup is by name.
type Set []Definition

// Validate checks the set is usable before a session starts: at least
// one field, unique names, known kinds and sane constraints.
func (s Set) Validate() error {
	if len(s) == 0 {
		return ErrNoFields
	}

	seen := make(map[string]struct{}, len(s))
	for _, def := range s {
		if def.Name == "" {
			return fmt.Errorf("field with empty name")
		}
		if _, dup := seen[def.Name]; dup {
			return fmt.Errorf("duplicate field name %q", def.Name)
		}
		seen[def.Name] = struct{}{}

		if !def.Kind.Valid() {
			return fmt.Errorf("field %q: unknown type %q", def.Name, def.Kind)
		}
		if def.Kind.IsChoice() && len(def.Choices) == 0 {
			return fmt.Errorf("field %q: %s requires choices", def.Name, def.Kind)
		}
		if def.MinNumber != nil && def.MaxNumber != nil && *def.MinNumber > *def.MaxNumber {
			return fmt.Errorf("field %q: minNumber greater than maxNumber", def.Name)
		}
		if def.MaxLength < 0 {
			return fmt.Errorf("field %q: negative maxLength", def.Name)
		}
	}

	return nil
}

// Get looks a definition up by name.
func (s Set) Get(name string) (Definition, bool) {
	for _, def := range s {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}
