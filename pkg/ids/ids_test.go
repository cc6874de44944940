package ids

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "root", in: "", want: ""},
		{name: "bare slash is root", in: "/", want: ""},
		{name: "simple", in: "images", want: "images"},
		{name: "nested", in: "images/icons", want: "images/icons"},
		{name: "leading slash stripped", in: "/images/icons", want: "images/icons"},
		{name: "trailing slash stripped", in: "images/icons/", want: "images/icons"},
		{name: "doubled slashes collapsed", in: "images//icons", want: "images/icons"},
		{name: "dot segment rejected", in: "images/./icons", wantErr: true},
		{name: "dotdot segment rejected", in: "images/../icons", wantErr: true},
		{name: "nul rejected", in: "images\x00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if err != nil && !errors.Is(err, ErrInvalidPath) {
				t.Errorf("error should wrap ErrInvalidPath: %v", err)
			}
		})
	}
}

func TestSplitJoinPath(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		name   string
	}{
		{"images", "", "images"},
		{"images/icons", "images", "icons"},
		{"a/b/c", "a/b", "c"},
	}
	for _, tt := range tests {
		parent, name := SplitPath(tt.path)
		if parent != tt.parent || name != tt.name {
			t.Errorf("SplitPath(%q) = (%q, %q), want (%q, %q)", tt.path, parent, name, tt.parent, tt.name)
		}
		if got := JoinPath(parent, name); got != tt.path {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", parent, name, got, tt.path)
		}
	}
}

func TestAncestors(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"", nil},
		{"images", nil},
		{"a/b", []string{"a"}},
		{"a/b/c", []string{"a", "a/b"}},
	}
	for _, tt := range tests {
		got := Ancestors(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("Ancestors(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Ancestors(%q)[%d] = %q, want %q", tt.path, i, got[i], tt.want[i])
			}
		}
	}
}

func TestValidateBasename(t *testing.T) {
	if err := ValidateBasename("logo.png"); err != nil {
		t.Errorf("ValidateBasename(logo.png) = %v", err)
	}
	if err := ValidateBasename(strings.Repeat("a", MaxBasenameLen)); err != nil {
		t.Errorf("basename at the limit should pass: %v", err)
	}

	if err := ValidateBasename(""); !errors.Is(err, ErrInvalidBasename) {
		t.Errorf("empty basename: %v", err)
	}
	if err := ValidateBasename("a/b"); !errors.Is(err, ErrInvalidBasename) {
		t.Errorf("slash in basename: %v", err)
	}
	if err := ValidateBasename("a\x00b"); !errors.Is(err, ErrInvalidBasename) {
		t.Errorf("NUL in basename: %v", err)
	}
	if err := ValidateBasename(strings.Repeat("a", MaxBasenameLen+1)); !errors.Is(err, ErrBasenameTooLong) {
		t.Errorf("oversized basename: %v", err)
	}
}

func TestIDPrefixes(t *testing.T) {
	if !strings.HasPrefix(NewFolderID().String(), "fld_") {
		t.Error("folder id prefix")
	}
	if !strings.HasPrefix(NewAssetID().String(), "ast_") {
		t.Error("asset id prefix")
	}
	if !strings.HasPrefix(NewVersionID().String(), "ver_") {
		t.Error("version id prefix")
	}
	if !strings.HasPrefix(NewIntentID().String(), "int_") {
		t.Error("intent id prefix")
	}
	if NewVersionID() == NewVersionID() {
		t.Error("version ids must be unique")
	}
}

func TestChangeIDOrdering(t *testing.T) {
	prev := NewChangeID()
	for i := 0; i < 1000; i++ {
		next := NewChangeID()
		if !(prev.String() < next.String()) {
			t.Fatalf("change ids out of order: %s then %s", prev, next)
		}
		prev = next
	}
}
