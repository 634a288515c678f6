package lir

import (
	"fmt"
	"math"
	"strings"
)

// Disassemble renders code as one instruction per line,
// "<addr>: <op> <operands>", for diagnostics and tests. It fails on the
// same malformed streams the interpreter rejects.
func Disassemble(code []byte) (string, error) {
	var sb strings.Builder
	d := Decoder{Code: code}

	for d.PC < len(code) {
		addr := d.PC
		op, ok := d.Op()
		if !ok {
			return "", fmt.Errorf("lir: truncated opcode at %d", addr)
		}
		operands, err := disasmOperands(&d, op)
		if err != nil {
			return "", fmt.Errorf("lir: %s at %d: %w", op, addr, err)
		}
		if operands == "" {
			fmt.Fprintf(&sb, "%d: %s\n", addr, op)
		} else {
			fmt.Fprintf(&sb, "%d: %s %s\n", addr, op, operands)
		}
	}
	return sb.String(), nil
}

func disasmOperands(d *Decoder, op Op) (string, error) {
	u16 := func() (int, error) {
		v, ok := d.U16()
		if !ok {
			return 0, fmt.Errorf("truncated tmpvar operand")
		}
		return v, nil
	}
	cstr := func() (string, error) {
		v, ok := d.CStr()
		if !ok {
			return "", fmt.Errorf("truncated string operand")
		}
		return v, nil
	}

	switch op {
	case NOP:
		return "", nil

	case ICONST, LINEINFO:
		var dst int
		var err error
		if op == ICONST {
			if dst, err = u16(); err != nil {
				return "", err
			}
		}
		v, ok := d.I32()
		if !ok {
			return "", fmt.Errorf("truncated immediate")
		}
		if op == LINEINFO {
			return fmt.Sprintf("%d", v), nil
		}
		return fmt.Sprintf("t%d, %d", dst, v), nil

	case FCONST:
		dst, err := u16()
		if err != nil {
			return "", err
		}
		bits, ok := d.U32()
		if !ok {
			return "", fmt.Errorf("truncated immediate")
		}
		return fmt.Sprintf("t%d, %g", dst, math.Float32frombits(bits)), nil

	case SCONST, LOADSYMBOL:
		dst, err := u16()
		if err != nil {
			return "", err
		}
		s, err := cstr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("t%d, %q", dst, s), nil

	case ACONST, DCONST, INC:
		dst, err := u16()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("t%d", dst), nil

	case ASSIGN, NEG, LEN:
		dst, err := u16()
		if err != nil {
			return "", err
		}
		src, err := u16()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("t%d, t%d", dst, src), nil

	case ADD, SUB, MUL, DIV, MOD, AND, OR, XOR,
		LT, LTE, GT, GTE, EQ, NEQ, EQI,
		LOADARRAY, STOREARRAY, GETDICTKEYBYINDEX, GETDICTVALBYINDEX:
		a, err := u16()
		if err != nil {
			return "", err
		}
		b, err := u16()
		if err != nil {
			return "", err
		}
		c, err := u16()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("t%d, t%d, t%d", a, b, c), nil

	case LOADDOT:
		dst, err := u16()
		if err != nil {
			return "", err
		}
		obj, err := u16()
		if err != nil {
			return "", err
		}
		name, err := cstr()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("t%d, t%d, %q", dst, obj, name), nil

	case STOREDOT:
		obj, err := u16()
		if err != nil {
			return "", err
		}
		name, err := cstr()
		if err != nil {
			return "", err
		}
		src, err := u16()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("t%d, %q, t%d", obj, name, src), nil

	case STORESYMBOL:
		name, err := cstr()
		if err != nil {
			return "", err
		}
		src, err := u16()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%q, t%d", name, src), nil

	case CALL, THISCALL:
		dst, err := u16()
		if err != nil {
			return "", err
		}
		target, err := u16()
		if err != nil {
			return "", err
		}
		name := ""
		if op == THISCALL {
			if name, err = cstr(); err != nil {
				return "", err
			}
		}
		argc, ok := d.U8()
		if !ok {
			return "", fmt.Errorf("truncated argument count")
		}
		args := make([]string, argc)
		for i := range args {
			a, err := u16()
			if err != nil {
				return "", err
			}
			args[i] = fmt.Sprintf("t%d", a)
		}
		if op == THISCALL {
			return fmt.Sprintf("t%d, t%d, %q, [%s]", dst, target, name, strings.Join(args, ", ")), nil
		}
		return fmt.Sprintf("t%d, t%d, [%s]", dst, target, strings.Join(args, ", ")), nil

	case JMP:
		target, ok := d.Jump()
		if !ok {
			return "", fmt.Errorf("bad jump target")
		}
		return fmt.Sprintf("@%d", target), nil

	case JMPIFTRUE, JMPIFFALSE, JMPIFEQ:
		src, err := u16()
		if err != nil {
			return "", err
		}
		target, ok := d.Jump()
		if !ok {
			return "", fmt.Errorf("bad jump target")
		}
		return fmt.Sprintf("t%d, @%d", src, target), nil

	default:
		return "", fmt.Errorf("unknown opcode %d", byte(op))
	}
}
