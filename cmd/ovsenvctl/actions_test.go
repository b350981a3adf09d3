package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseTruncateFields(t *testing.T) {
	tests := []struct {
		description string
		input       []string
		want        map[string]int
		wantError   error
	}{
		{
			description: "empty",
			input:       []string{},
			want:        nil,
		},
		{
			description: "single field",
			input:       []string{"data=16"},
			want:        map[string]int{"data": 16},
		},
		{
			description: "multiple fields",
			input:       []string{"data=16", "subject=8"},
			want:        map[string]int{"data": 16, "subject": 8},
		},
		{
			description: "missing length",
			input:       []string{"data"},
			wantError:   cmpopts.AnyError,
		},
		{
			description: "invalid length",
			input:       []string{"data=many"},
			wantError:   cmpopts.AnyError,
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			got, err := parseTruncateFields(test.input)

			if test.wantError != nil {
				if !cmp.Equal(err, test.wantError, cmpopts.EquateErrors()) {
					t.Errorf("%#v != %#v", err, test.wantError)
				}
			} else {
				if err != nil {
					t.Fatal(err)
				}
				if !cmp.Equal(got, test.want) {
					t.Errorf("%v", cmp.Diff(got, test.want))
				}
			}
		})
	}
}
