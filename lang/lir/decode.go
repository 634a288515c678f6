package lir

import "encoding/binary"

// Decoder reads operands sequentially out of a bytecode stream starting
// at a given program counter. Both the interpreter and the text
// disassembler share it so that operand widths only need to agree in one
// place.
type Decoder struct {
	Code []byte
	PC   int
}

// Op reads the opcode byte at PC and advances past it. ok is false if PC
// is out of range.
func (d *Decoder) Op() (Op, bool) {
	if d.PC < 0 || d.PC >= len(d.Code) {
		return 0, false
	}
	op := Op(d.Code[d.PC])
	d.PC++
	return op, true
}

// U16 reads a big-endian 2-byte Tmpvar operand.
func (d *Decoder) U16() (int, bool) {
	if d.PC+2 > len(d.Code) {
		return 0, false
	}
	v := binary.BigEndian.Uint16(d.Code[d.PC:])
	d.PC += 2
	return int(v), true
}

// U32 reads a big-endian 4-byte immediate.
func (d *Decoder) U32() (uint32, bool) {
	if d.PC+4 > len(d.Code) {
		return 0, false
	}
	v := binary.BigEndian.Uint32(d.Code[d.PC:])
	d.PC += 4
	return v, true
}

// I32 reads a big-endian 4-byte signed immediate.
func (d *Decoder) I32() (int32, bool) {
	v, ok := d.U32()
	return int32(v), ok
}

// U8 reads a single unsigned byte (CALL/THISCALL argc).
func (d *Decoder) U8() (int, bool) {
	if d.PC >= len(d.Code) {
		return 0, false
	}
	v := d.Code[d.PC]
	d.PC++
	return int(v), true
}

// CStr reads a NUL-terminated inline string.
func (d *Decoder) CStr() (string, bool) {
	start := d.PC
	for d.PC < len(d.Code) {
		if d.Code[d.PC] == 0 {
			s := string(d.Code[start:d.PC])
			d.PC++
			return s, true
		}
		d.PC++
	}
	return "", false
}

// Jump reads a 4-byte absolute jump target and validates it against the
// code length.
func (d *Decoder) Jump() (int, bool) {
	v, ok := d.U32()
	if !ok {
		return 0, false
	}
	target := int(v)
	if target < 0 || target > len(d.Code) {
		return 0, false
	}
	return target, true
}
