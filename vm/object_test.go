package vm

import "testing"

func TestHashKeyInjectiveWithinKind(t *testing.T) {
	hello1 := &String{Value: "Hello World"}
	hello2 := &String{Value: "Hello World"}
	diff := &String{Value: "My name is johnny"}

	if hello1.HashKey() != hello2.HashKey() {
		t.Error("strings with same content have different hash keys")
	}
	if hello1.HashKey() == diff.HashKey() {
		t.Error("strings with different content have same hash keys")
	}

	one1 := &Integer{Value: 1}
	one2 := &Integer{Value: 1}
	two := &Integer{Value: 2}

	if one1.HashKey() != one2.HashKey() {
		t.Error("equal integers have different hash keys")
	}
	if one1.HashKey() == two.HashKey() {
		t.Error("different integers have same hash keys")
	}

	if True.HashKey() != True.HashKey() {
		t.Error("true is not hash-stable")
	}
	if True.HashKey() == False.HashKey() {
		t.Error("true and false collide")
	}
}

func TestHashKeyDisjointAcrossKinds(t *testing.T) {
	// 1, true and "1" must have pairwise distinct keys: the Kind field
	// is the salt.
	intKey := (&Integer{Value: 1}).HashKey()
	boolKey := True.HashKey()
	strKey := (&String{Value: "1"}).HashKey()

	if intKey == boolKey || intKey == strKey || boolKey == strKey {
		t.Errorf("hash keys not disjoint across kinds: %v %v %v", intKey, boolKey, strKey)
	}
}

func TestInspect(t *testing.T) {
	tests := []struct {
		obj  Object
		want string
	}{
		{&Integer{Value: -7}, "-7"},
		{True, "true"},
		{False, "false"},
		{Null, "null"},
		{&String{Value: "hi"}, "hi"},
		{&Array{Elements: []Object{&Integer{Value: 1}, &Integer{Value: 2}}}, "[1, 2]"},
		{&Error{Message: "boom"}, "ERROR: boom"},
	}

	for _, tt := range tests {
		if got := tt.obj.Inspect(); got != tt.want {
			t.Errorf("Inspect: want %q, got %q", tt.want, got)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		obj  Object
		want bool
	}{
		{True, true},
		{False, false},
		{Null, false},
		{&Integer{Value: 0}, true}, // 0 is truthy
		{&Integer{Value: 1}, true},
		{&String{Value: ""}, true},
	}

	for _, tt := range tests {
		if got := IsTruthy(tt.obj); got != tt.want {
			t.Errorf("IsTruthy(%s): want %t, got %t", tt.obj.Inspect(), tt.want, got)
		}
	}
}

func TestKindNames(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInteger, "INTEGER"},
		{KindBoolean, "BOOLEAN"},
		{KindNull, "NULL"},
		{KindString, "STRING"},
		{KindArray, "ARRAY"},
		{KindHash, "HASH"},
		{KindClosure, "CLOSURE"},
		{KindCompiledFunction, "COMPILED_FUNCTION"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind.String: want %q, got %q", tt.want, got)
		}
	}
}

func TestLookupBuiltin(t *testing.T) {
	if b := LookupBuiltin("len"); b == nil || b.Name != "len" {
		t.Fatal("len builtin not found")
	}
	if b := LookupBuiltin("nope"); b != nil {
		t.Fatal("unexpected builtin for unknown name")
	}
	// Registry order is a bytecode contract.
	wantOrder := []string{"len", "first", "last", "rest", "push", "puts"}
	if len(Builtins) != len(wantOrder) {
		t.Fatalf("want %d builtins, got %d", len(wantOrder), len(Builtins))
	}
	for i, name := range wantOrder {
		if Builtins[i].Name != name {
			t.Errorf("builtin %d: want %q, got %q", i, name, Builtins[i].Name)
		}
	}
}
