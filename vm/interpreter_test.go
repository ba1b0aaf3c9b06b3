package vm

import (
	"bytes"
	"testing"

	"github.com/rill-lang/rill/compiler"
)

func testEval(t *testing.T, input string) Object {
	t.Helper()
	program, err := compiler.Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return Eval(program, NewEnvironment())
}

func wantInteger(t *testing.T, obj Object, want int64) {
	t.Helper()
	result, ok := obj.(*Integer)
	if !ok {
		t.Fatalf("want Integer, got %T (%+v)", obj, obj)
	}
	if result.Value != want {
		t.Fatalf("want %d, got %d", want, result.Value)
	}
}

func wantBoolean(t *testing.T, obj Object, want bool) {
	t.Helper()
	result, ok := obj.(*Boolean)
	if !ok {
		t.Fatalf("want Boolean, got %T (%+v)", obj, obj)
	}
	if result.Value != want {
		t.Fatalf("want %t, got %t", want, result.Value)
	}
}

func wantNull(t *testing.T, obj Object) {
	t.Helper()
	if obj != Null {
		t.Fatalf("want null, got %T (%+v)", obj, obj)
	}
}

func TestEvalIntegerExpressions(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"5", 5},
		{"-5", -5},
		{"--10", 10},
		{"5 + 5 + 5 + 5 - 10", 10},
		{"2 * 2 * 2 * 2 * 2", 32},
		{"-50 + 100 + -50", 0},
		{"5 * 2 + 10", 20},
		{"5 + 2 * 10", 25},
		{"50 / 2 * 2 + 10", 60},
		{"2 * (5 + 10)", 30},
		{"(5 + 10 * 2 + 15 / 3) * 2 + -10", 50},
		{"-7 / 2", -3}, // truncates toward zero
		{"7 / -2", -3},
	}

	for _, tt := range tests {
		wantInteger(t, testEval(t, tt.input), tt.want)
	}
}

func TestEvalBooleanExpressions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"false", false},
		{"1 < 2", true},
		{"1 > 2", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{"true == true", true},
		{"false == false", true},
		{"true != false", true},
		{"(1 < 2) == true", true},
		{"!true", false},
		{"!null", true},
		{"!0", false}, // 0 is truthy
		{"!!5", true},
	}

	for _, tt := range tests {
		wantBoolean(t, testEval(t, tt.input), tt.want)
	}
}

func TestEvalStringExpressions(t *testing.T) {
	result := testEval(t, `"Hello" + " " + "World!"`)
	str, ok := result.(*String)
	if !ok {
		t.Fatalf("want String, got %T", result)
	}
	if str.Value != "Hello World!" {
		t.Errorf("got %q", str.Value)
	}
}

func TestEvalIfExpressions(t *testing.T) {
	tests := []struct {
		input string
		want  interface{}
	}{
		{"if (true) { 10 }", int64(10)},
		{"if (false) { 10 }", nil},
		{"if (1) { 10 }", int64(10)},
		{"if (0) { 10 }", int64(10)}, // 0 is truthy
		{"if (1 < 2) { 10 } else { 20 }", int64(10)},
		{"if (1 > 2) { 10 } else { 20 }", int64(20)},
		{"if (null) { 10 } else { 20 }", int64(20)},
	}

	for _, tt := range tests {
		result := testEval(t, tt.input)
		if want, ok := tt.want.(int64); ok {
			wantInteger(t, result, want)
		} else {
			wantNull(t, result)
		}
	}
}

func TestEvalReturnStatements(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"return 10;", 10},
		{"return 10; 9;", 10},
		{"return 2 * 5; 9;", 10},
		{"9; return 2 * 5; 9;", 10},
		{"if (10 > 1) { if (10 > 1) { return 10; } return 1; }", 10},
	}

	for _, tt := range tests {
		wantInteger(t, testEval(t, tt.input), tt.want)
	}
}

func TestEvalLetStatements(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"let a = 5; a;", 5},
		{"let a = 5 * 5; a;", 25},
		{"let a = 5; let b = a; b;", 5},
		{"let a = 5; let b = a; let c = a + b + 5; c;", 15},
	}

	for _, tt := range tests {
		wantInteger(t, testEval(t, tt.input), tt.want)
	}
}

func TestEvalFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"let identity = fn(x) { x; }; identity(5);", 5},
		{"let identity = fn(x) { return x; }; identity(5);", 5},
		{"let double = fn(x) { x * 2; }; double(5);", 10},
		{"let add = fn(x, y) { x + y; }; add(5, 5);", 10},
		{"let add = fn(x, y) { x + y; }; add(5 + 5, add(5, 5));", 20},
		{"fn(x) { x; }(5)", 5},
	}

	for _, tt := range tests {
		wantInteger(t, testEval(t, tt.input), tt.want)
	}
}

func TestEvalClosures(t *testing.T) {
	input := `
let newAdder = fn(x) { fn(y) { x + y }; };
let addTwo = newAdder(2);
addTwo(2);`
	wantInteger(t, testEval(t, input), 4)
}

func TestEvalRecursion(t *testing.T) {
	input := `
let fibonacci = fn(x) {
  if (x < 2) { x } else { fibonacci(x - 1) + fibonacci(x - 2) }
};
fibonacci(10);`
	wantInteger(t, testEval(t, input), 55)
}

func TestEvalArrays(t *testing.T) {
	result := testEval(t, "[1, 2 * 2, 3 + 3]")
	arr, ok := result.(*Array)
	if !ok {
		t.Fatalf("want Array, got %T", result)
	}
	if len(arr.Elements) != 3 {
		t.Fatalf("want 3 elements, got %d", len(arr.Elements))
	}
	wantInteger(t, arr.Elements[0], 1)
	wantInteger(t, arr.Elements[1], 4)
	wantInteger(t, arr.Elements[2], 6)
}

func TestEvalArrayIndexing(t *testing.T) {
	tests := []struct {
		input string
		want  interface{}
	}{
		{"[1, 2, 3][0]", int64(1)},
		{"[1, 2, 3][2]", int64(3)},
		{"let i = 0; [1][i];", int64(1)},
		{"let a = [1, 2, 3]; a[2];", int64(3)},
		{"[1, 2, 3][3]", nil},
		{"[1, 2, 3][-1]", nil},
	}

	for _, tt := range tests {
		result := testEval(t, tt.input)
		if want, ok := tt.want.(int64); ok {
			wantInteger(t, result, want)
		} else {
			wantNull(t, result)
		}
	}
}

func TestEvalHashes(t *testing.T) {
	input := `let two = "two";
{
  "one": 10 - 9,
  two: 1 + 1,
  "thr" + "ee": 6 / 2,
  4: 4,
  true: 5,
  false: 6
}`
	result := testEval(t, input)
	hash, ok := result.(*Hash)
	if !ok {
		t.Fatalf("want Hash, got %T", result)
	}

	want := map[HashKey]int64{
		(&String{Value: "one"}).HashKey():   1,
		(&String{Value: "two"}).HashKey():   2,
		(&String{Value: "three"}).HashKey(): 3,
		(&Integer{Value: 4}).HashKey():      4,
		True.HashKey():                      5,
		False.HashKey():                     6,
	}

	if len(hash.Entries) != len(want) {
		t.Fatalf("want %d entries, got %d", len(want), len(hash.Entries))
	}
	for key, wantValue := range want {
		entry, ok := hash.Entries[key]
		if !ok {
			t.Errorf("missing entry for key %v", key)
			continue
		}
		wantInteger(t, entry.Value, wantValue)
	}
}

func TestEvalHashIndexing(t *testing.T) {
	tests := []struct {
		input string
		want  interface{}
	}{
		{`{"foo": 5}["foo"]`, int64(5)},
		{`{"foo": 5}["bar"]`, nil},
		{`let key = "foo"; {"foo": 5}[key]`, int64(5)},
		{`{}["foo"]`, nil},
		{`{5: 5}[5]`, int64(5)},
		{`{true: 5}[true]`, int64(5)},
	}

	for _, tt := range tests {
		result := testEval(t, tt.input)
		if want, ok := tt.want.(int64); ok {
			wantInteger(t, result, want)
		} else {
			wantNull(t, result)
		}
	}
}

func TestEvalBuiltins(t *testing.T) {
	tests := []struct {
		input string
		want  interface{}
	}{
		{`len("")`, int64(0)},
		{`len("four")`, int64(4)},
		{`len([1, 2, 3])`, int64(3)},
		{`first([1, 2, 3])`, int64(1)},
		{`first([])`, nil},
		{`last([1, 2, 3])`, int64(3)},
		{`last([])`, nil},
		{`rest([])`, nil},
		{`len(rest([1, 2, 3]))`, int64(2)},
		{`len(1)`, "argument to 'len' not supported, got INTEGER"},
		{`len("one", "two")`, "wrong number of arguments. got=2, want=1"},
		{`first(1)`, "argument to 'first' must be ARRAY, got INTEGER"},
		{`push(1, 1)`, "argument to 'push' must be ARRAY, got INTEGER"},
	}

	for _, tt := range tests {
		result := testEval(t, tt.input)
		switch want := tt.want.(type) {
		case int64:
			wantInteger(t, result, want)
		case string:
			errObj, ok := result.(*Error)
			if !ok {
				t.Fatalf("%q: want Error, got %T (%+v)", tt.input, result, result)
			}
			if errObj.Message != want {
				t.Errorf("%q: want error %q, got %q", tt.input, want, errObj.Message)
			}
		case nil:
			wantNull(t, result)
		}
	}
}

func TestPushDoesNotMutate(t *testing.T) {
	input := `let a = [1, 2, 3]; push(a, 4); len(a);`
	wantInteger(t, testEval(t, input), 3)
}

func TestPutsWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	old := PutsWriter
	PutsWriter = &buf
	defer func() { PutsWriter = old }()

	result := testEval(t, `puts("hello", 42)`)
	wantNull(t, result)
	if got := buf.String(); got != "hello\n42\n" {
		t.Errorf("puts output: got %q", got)
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"5 + true;", "type mismatch: INTEGER + BOOLEAN"},
		{"5 + true; 5;", "type mismatch: INTEGER + BOOLEAN"},
		{"-true", "unknown operator: -BOOLEAN"},
		{"true + false;", "unknown operator: BOOLEAN + BOOLEAN"},
		{"5; true + false; 5", "unknown operator: BOOLEAN + BOOLEAN"},
		{`"Hello" - "World"`, "unknown operator: STRING - STRING"},
		{"foobar", "identifier not found: foobar"},
		{"1 / 0", "division by zero"},
		{`{"name": "Rill"}[fn(x) { x }];`, "unusable as hash key: FUNCTION"},
		{"{fn(x) { x }: 1}", "unusable as hash key: FUNCTION"},
		{"1(2)", "not a function: INTEGER"},
		{"5[0]", "index operator not supported: INTEGER"},
		{"let f = fn(a, b) { a }; f(1)", "wrong number of arguments: want=2, got=1"},
	}

	for _, tt := range tests {
		result := testEval(t, tt.input)
		errObj, ok := result.(*Error)
		if !ok {
			t.Fatalf("%q: want Error, got %T (%+v)", tt.input, result, result)
		}
		if errObj.Message != tt.want {
			t.Errorf("%q: want %q, got %q", tt.input, tt.want, errObj.Message)
		}
	}
}

func TestIntegerOverflowWraps(t *testing.T) {
	// 9223372036854775807 + 1 wraps to the minimum int64.
	result := testEval(t, "9223372036854775806 + 1 + 1")
	wantInteger(t, result, -9223372036854775808)
}

func TestEnvironmentShadowing(t *testing.T) {
	input := `
let x = 1;
let f = fn() { let x = 2; x };
f() + x;`
	wantInteger(t, testEval(t, input), 3)
}

func TestBuiltinShadowedByBinding(t *testing.T) {
	input := `let len = fn(x) { 99 }; len([1]);`
	wantInteger(t, testEval(t, input), 99)
}
