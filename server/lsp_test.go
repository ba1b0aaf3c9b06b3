package server

import (
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestExtractWord(t *testing.T) {
	text := "let result = push(arr, 1)\nlen(result)"

	tests := []struct {
		line, char protocol.UInteger
		want       string
	}{
		{0, 5, "result"},
		{0, 14, "push"},
		{1, 1, "len"},
		{0, 12, ""},  // on '='
		{9, 0, ""},   // out of range
	}

	for _, tt := range tests {
		got := extractWord(text, protocol.Position{Line: tt.line, Character: tt.char})
		if got != tt.want {
			t.Errorf("(%d,%d): want %q, got %q", tt.line, tt.char, tt.want, got)
		}
	}
}

func TestExtractPrefix(t *testing.T) {
	text := "let x = pu"

	got := extractPrefix(text, protocol.Position{Line: 0, Character: 10})
	if got != "pu" {
		t.Errorf("want %q, got %q", "pu", got)
	}

	got = extractPrefix(text, protocol.Position{Line: 0, Character: 8})
	if got != "" {
		t.Errorf("want empty prefix, got %q", got)
	}
}

func TestLetBoundNames(t *testing.T) {
	text := "let alpha = 1;\nlet beta = fn(x) { let gamma = x; gamma };"
	names := letBoundNames(text)

	want := []string{"alpha", "beta", "gamma"}
	if len(names) != len(want) {
		t.Fatalf("want %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %d: want %q, got %q", i, want[i], names[i])
		}
	}
}

func TestCheckDocument(t *testing.T) {
	if msg, _ := checkDocument("let a = 1; a + 1;"); msg != "" {
		t.Errorf("valid document produced diagnostic: %q", msg)
	}

	msg, line := checkDocument("let a = 1;\nlet = 2;")
	if msg == "" {
		t.Fatal("expected parse diagnostic")
	}
	if line != 1 {
		t.Errorf("want line 1, got %d", line)
	}

	if msg, _ := checkDocument("undefinedName"); msg != "undefined variable undefinedName" {
		t.Errorf("compile diagnostic: got %q", msg)
	}
}

func TestComplete(t *testing.T) {
	s := NewLSP()
	text := "let counter = 1;\nlet counted = 2;\nco"

	items := s.complete(text, "co")
	var labels []string
	for _, item := range items {
		labels = append(labels, item.Label)
	}

	wantPresent := map[string]bool{"counter": false, "counted": false}
	for _, label := range labels {
		if _, ok := wantPresent[label]; ok {
			wantPresent[label] = true
		}
	}
	for name, seen := range wantPresent {
		if !seen {
			t.Errorf("completion missing %q (got %v)", name, labels)
		}
	}

	// Builtins complete too.
	items = s.complete(text, "pu")
	found := false
	for _, item := range items {
		if item.Label == "push" || item.Label == "puts" {
			found = true
		}
	}
	if !found {
		t.Errorf("builtin completion missing: %v", items)
	}
}
