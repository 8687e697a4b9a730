package fields

import "testing"

func TestKindValid(t *testing.T) {
	tests := []struct {
		kind  Kind
		valid bool
	}{
		{KindText, true},
		{KindTextarea, true},
		{KindNumber, true},
		{KindBoolean, true},
		{KindSelect, true},
		{KindMultiSelect, true},
		{KindFile, true},
		{KindMultiFile, true},
		{Kind("dropdown"), false},
		{Kind(""), false},
	}

	for _, tt := range tests {
		if got := tt.kind.Valid(); got != tt.valid {
			t.Errorf("Kind(%q).Valid() = %v; want %v", tt.kind, got, tt.valid)
		}
	}
}

func TestSetValidate(t *testing.T) {
	minNum := 10.0
	maxNum := 5.0

	tests := []struct {
		name    string
		set     Set
		wantErr bool
	}{
		{
			name:    "empty set",
			set:     Set{},
			wantErr: true,
		},
		{
			name: "valid set",
			set: Set{
				{Name: "env", Kind: KindSelect, Choices: []string{"dev", "prod"}},
				{Name: "notes", Kind: KindTextarea},
			},
			wantErr: false,
		},
		{
			name: "duplicate names",
			set: Set{
				{Name: "env", Kind: KindText},
				{Name: "env", Kind: KindNumber},
			},
			wantErr: true,
		},
		{
			name:    "empty name",
			set:     Set{{Name: "", Kind: KindText}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			set:     Set{{Name: "x", Kind: Kind("radio")}},
			wantErr: true,
		},
		{
			name:    "select without choices",
			set:     Set{{Name: "x", Kind: KindSelect}},
			wantErr: true,
		},
		{
			name:    "multiselect without choices",
			set:     Set{{Name: "x", Kind: KindMultiSelect}},
			wantErr: true,
		},
		{
			name:    "min above max",
			set:     Set{{Name: "x", Kind: KindNumber, MinNumber: &minNum, MaxNumber: &maxNum}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		err := tt.set.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v; wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestSetGet(t *testing.T) {
	set := Set{
		{Name: "one", Kind: KindText},
		{Name: "two", Kind: KindNumber},
	}

	if def, ok := set.Get("two"); !ok || def.Kind != KindNumber {
		t.Errorf("Get(\"two\") = %v, %v; want number field", def, ok)
	}
	if _, ok := set.Get("missing"); ok {
		t.Error("Get(\"missing\") should not find a field")
	}
}

func TestDefinitionLabel(t *testing.T) {
	if got := (Definition{Name: "env"}).Label(); got != "env" {
		t.Errorf("Label() = %q; want field name fallback", got)
	}
	if got := (Definition{Name: "env", Display: "Environment"}).Label(); got != "Environment" {
		t.Errorf("Label() = %q; want display name", got)
	}
}
