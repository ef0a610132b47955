package attrmap

import (
	"errors"
	"testing"
)

var testTable = map[string]string{
	"title":         "title",
	"modified":      "lastmodified",
	"anyText":       "text",
	"metacard-tags": "type",
}

func TestToNative(t *testing.T) {
	m := New(testTable)

	tests := []struct {
		in   string
		want string
	}{
		{"modified", "lastmodified"},
		{"MODIFIED", "lastmodified"},
		{"AnyText", "text"},
		{"unmapped", "unmapped"},
		{"Unmapped-Case", "Unmapped-Case"},
		{"modif", "modif"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := m.ToNative(tt.in); got != tt.want {
				t.Errorf("ToNative(%q): expected %q, got %q", tt.in, tt.want, got)
			}
		})
	}
}

func TestToNativeIdempotent(t *testing.T) {
	m := New(testTable)
	for _, name := range []string{"title", "modified", "anyText", "metacard-tags", "other"} {
		once := m.ToNative(name)
		if twice := m.ToNative(once); twice != once {
			t.Errorf("ToNative(ToNative(%q)) = %q, expected %q", name, twice, once)
		}
	}
}

func TestToAbstract(t *testing.T) {
	m := New(testTable)

	if got := m.ToAbstract("LastModified"); got != "modified" {
		t.Errorf("expected modified, got %q", got)
	}
	if got := m.ToAbstract("text"); got != "anyText" {
		t.Errorf("expected anyText with original casing, got %q", got)
	}
	if got := m.ToAbstract("space"); got != "space" {
		t.Errorf("expected pass-through, got %q", got)
	}
}

func TestRegisterOverride(t *testing.T) {
	m := New(testTable)

	if err := m.RegisterOverride("Modified", "updated"); err != nil {
		t.Fatalf("RegisterOverride failed: %v", err)
	}
	if err := m.RegisterOverride("modified", "changed"); err != nil {
		t.Fatalf("RegisterOverride failed: %v", err)
	}

	if got := m.ToNative("modified"); got != "changed" {
		t.Errorf("expected last override to win, got %q", got)
	}
	if got := m.ToAbstract("changed"); got != "modified" {
		t.Errorf("expected reverse lookup of override, got %q", got)
	}
	if got := m.ToAbstract("lastmodified"); got != "lastmodified" {
		t.Errorf("expected shadowed built-in to pass through, got %q", got)
	}
	if got := m.ToNative("title"); got != "title" {
		t.Errorf("expected built-in untouched, got %q", got)
	}
}

func TestRegisterOverrideErrors(t *testing.T) {
	m := New(nil)

	if err := m.RegisterOverride("", "x"); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
	if err := m.RegisterOverride("x", "  "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}

	m.Freeze()
	m.Freeze()
	if !m.Frozen() {
		t.Fatal("expected mapper to be frozen")
	}
	if err := m.RegisterOverrides(map[string]string{"a": "b"}); !errors.Is(err, ErrFrozen) {
		t.Errorf("expected ErrFrozen, got %v", err)
	}
	if got := m.ToNative("a"); got != "a" {
		t.Errorf("expected rejected override to have no effect, got %q", got)
	}
}

func TestRegisterOverridesAmbiguous(t *testing.T) {
	m := New(testTable)

	err := m.RegisterOverrides(map[string]string{"Title": "name", "title": "heading", "modified": "updated"})
	if !errors.Is(err, ErrAmbiguousName) {
		t.Fatalf("expected ErrAmbiguousName, got %v", err)
	}
	for _, name := range []string{"title", "modified"} {
		if got, want := m.ToNative(name), New(testTable).ToNative(name); got != want {
			t.Errorf("expected %s to keep %q after rejected overrides, got %q", name, want, got)
		}
	}

	if err := m.RegisterOverrides(map[string]string{"a": "b", " ": "c"}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
	if got := m.ToNative("a"); got != "a" {
		t.Errorf("expected no partial registration, got %q", got)
	}

	if err := m.RegisterOverrides(map[string]string{"Title": "name", "modified": "updated"}); err != nil {
		t.Fatalf("RegisterOverrides failed: %v", err)
	}
	if got := m.ToNative("title"); got != "name" {
		t.Errorf("expected override, got %q", got)
	}
}

func TestNewCopiesTable(t *testing.T) {
	table := map[string]string{"a": "b"}
	m := New(table)
	table["a"] = "c"

	if got := m.ToNative("a"); got != "b" {
		t.Errorf("expected mapper to keep its own copy, got %q", got)
	}
}
