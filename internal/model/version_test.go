package model

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"1.0.0", Version{1, 0, 0}, false},
		{"0.0.0", Version{0, 0, 0}, false},
		{"10.22.333", Version{10, 22, 333}, false},
		{"1.0", Version{}, true},
		{"1.0.0.0", Version{}, true},
		{"1.0.-1", Version{}, true},
		{"1.0.x", Version{}, true},
		{"1.0.01", Version{}, true},
		{"", Version{}, true},
		{"v1.0.0", Version{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseVersion(%q): expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.1.0", "1.0.9", 1},
		{"2.0.0", "1.99.99", 1},
		{"1.2.0", "1.10.0", -1},
	}
	for _, tt := range tests {
		a, b := MustParseVersion(tt.a), MustParseVersion(tt.b)
		if got := a.Compare(b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := b.Compare(a); got != -tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}

func TestVersionOrderingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genVersion := gopter.CombineGens(
		gen.IntRange(0, 99), gen.IntRange(0, 99), gen.IntRange(0, 99),
	).Map(func(vals []interface{}) Version {
		return Version{vals[0].(int), vals[1].(int), vals[2].(int)}
	})

	properties.Property("parse round-trips String", prop.ForAll(
		func(v Version) bool {
			parsed, err := ParseVersion(v.String())
			return err == nil && parsed == v
		},
		genVersion,
	))

	properties.Property("Bump is strictly greater", prop.ForAll(
		func(v Version) bool {
			return v.Less(v.Bump())
		},
		genVersion,
	))

	properties.Property("Compare is antisymmetric", prop.ForAll(
		func(a, b Version) bool {
			return a.Compare(b) == -b.Compare(a)
		},
		genVersion, genVersion,
	))

	properties.TestingRun(t)
}
