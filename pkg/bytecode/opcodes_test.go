package bytecode

import "testing"

func TestMake(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int
		want     []byte
	}{
		{OpConstant, []int{65534}, []byte{byte(OpConstant), 255, 254}},
		{OpAdd, []int{}, []byte{byte(OpAdd)}},
		{OpGetLocal, []int{255}, []byte{byte(OpGetLocal), 255}},
		{OpClosure, []int{65534, 255}, []byte{byte(OpClosure), 255, 254, 255}},
		{OpJump, []int{7}, []byte{byte(OpJump), 0, 7}},
	}

	for _, tt := range tests {
		instruction := Make(tt.op, tt.operands...)

		if len(instruction) != len(tt.want) {
			t.Fatalf("%s: want length %d, got %d", tt.op, len(tt.want), len(instruction))
		}
		for i, b := range tt.want {
			if instruction[i] != b {
				t.Errorf("%s: byte %d: want 0x%02X, got 0x%02X", tt.op, i, b, instruction[i])
			}
		}
	}
}

func TestReadOperands(t *testing.T) {
	tests := []struct {
		op        Opcode
		operands  []int
		bytesRead int
	}{
		{OpConstant, []int{65535}, 2},
		{OpGetLocal, []int{255}, 1},
		{OpClosure, []int{65534, 255}, 3},
	}

	for _, tt := range tests {
		instruction := Make(tt.op, tt.operands...)

		def, err := Lookup(byte(tt.op))
		if err != nil {
			t.Fatalf("definition not found: %v", err)
		}

		operandsRead, n := ReadOperands(def, instruction[1:])
		if n != tt.bytesRead {
			t.Fatalf("%s: want %d bytes read, got %d", tt.op, tt.bytesRead, n)
		}
		for i, want := range tt.operands {
			if operandsRead[i] != want {
				t.Errorf("%s: operand %d: want %d, got %d", tt.op, i, want, operandsRead[i])
			}
		}
	}
}

func TestLookupUnknownOpcode(t *testing.T) {
	if _, err := Lookup(0xEE); err == nil {
		t.Fatal("expected error for undefined opcode")
	}
}

func TestEveryOpcodeHasDefinition(t *testing.T) {
	for _, op := range AllOpcodes() {
		def, err := Lookup(byte(op))
		if err != nil {
			t.Errorf("opcode 0x%02X has no definition", byte(op))
			continue
		}
		if def.Name == "" {
			t.Errorf("opcode 0x%02X has empty name", byte(op))
		}
		for i, w := range def.OperandWidths {
			if w != 1 && w != 2 {
				t.Errorf("%s: operand %d has unsupported width %d", def.Name, i, w)
			}
		}
	}
}

func TestInstructionLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpPop, 1},
		{OpGetLocal, 2},
		{OpConstant, 3},
		{OpClosure, 4},
	}

	for _, tt := range tests {
		if got := tt.op.InstructionLen(); got != tt.want {
			t.Errorf("%s: want length %d, got %d", tt.op, tt.want, got)
		}
	}
}

func TestDisassemble(t *testing.T) {
	instructions := []Instructions{
		Make(OpAdd),
		Make(OpGetLocal, 1),
		Make(OpConstant, 2),
		Make(OpConstant, 65535),
		Make(OpClosure, 65535, 255),
	}

	want := `0000 OpAdd
0001 OpGetLocal 1
0003 OpConstant 2
0006 OpConstant 65535
0009 OpClosure 65535 255
`

	concatted := Instructions{}
	for _, ins := range instructions {
		concatted = append(concatted, ins...)
	}

	if got := concatted.Disassemble(); got != want {
		t.Errorf("wrong disassembly.\nwant:\n%s\ngot:\n%s", want, got)
	}
}
