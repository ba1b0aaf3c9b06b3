package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the instruction stream,
// one instruction per line, each prefixed by its 4-digit zero-padded byte
// offset.
func (ins Instructions) Disassemble() string {
	var sb strings.Builder

	i := 0
	for i < len(ins) {
		def, err := Lookup(ins[i])
		if err != nil {
			fmt.Fprintf(&sb, "ERROR: %s\n", err)
			i++
			continue
		}

		operands, read := ReadOperands(def, ins[i+1:])
		fmt.Fprintf(&sb, "%04d %s\n", i, formatInstruction(def, operands))

		i += 1 + read
	}

	return sb.String()
}

// String is an alias for Disassemble so instruction streams print usefully.
func (ins Instructions) String() string {
	return ins.Disassemble()
}

func formatInstruction(def *Definition, operands []int) string {
	if len(operands) != len(def.OperandWidths) {
		return fmt.Sprintf("ERROR: operand len %d does not match defined %d",
			len(operands), len(def.OperandWidths))
	}

	switch len(operands) {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	case 2:
		return fmt.Sprintf("%s %d %d", def.Name, operands[0], operands[1])
	}

	return fmt.Sprintf("ERROR: unhandled operand count for %s", def.Name)
}
