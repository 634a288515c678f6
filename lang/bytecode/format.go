// Package bytecode implements the on-disk bytecode file format: a small
// LF-terminated ASCII header followed, per function, by a parameter list
// and a raw byte blob. It is the load/save counterpart to package lir's
// in-memory assembler.
package bytecode

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// errBadFormat is returned, wrapped with more detail, for any header or
// structural deviation.
var errBadFormat = errors.New("Failed to load bytecode")

// Func is one function's on-disk representation: its declared name,
// parameter names, register-file size, and raw LIR bytecode.
type Func struct {
	Name       string
	Params     []string
	TmpVarSize int
	Bytecode   []byte
}

// File is the full contents of one bytecode file: the source path it was
// compiled from and its functions, in declaration order.
type File struct {
	Source    string
	Functions []Func
}

// Write serializes f into the on-disk bytecode file format.
func Write(f *File) []byte {
	var buf bytes.Buffer
	writeLine(&buf, "Linguine Bytecode")
	writeLine(&buf, "Source")
	writeLine(&buf, f.Source)
	writeLine(&buf, "Number Of Functions")
	writeLine(&buf, strconv.Itoa(len(f.Functions)))

	for _, fn := range f.Functions {
		writeLine(&buf, "Begin Function")
		writeLine(&buf, "Name")
		writeLine(&buf, fn.Name)
		writeLine(&buf, "Parameters")
		writeLine(&buf, strconv.Itoa(len(fn.Params)))
		for _, p := range fn.Params {
			writeLine(&buf, p)
		}
		writeLine(&buf, "Local Size")
		writeLine(&buf, strconv.Itoa(fn.TmpVarSize))
		writeLine(&buf, "Bytecode Size")
		writeLine(&buf, strconv.Itoa(len(fn.Bytecode)))
		buf.Write(fn.Bytecode)
		buf.WriteByte('\n')
		writeLine(&buf, "End Function")
	}
	return buf.Bytes()
}

func writeLine(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte('\n')
}

// Read parses a bytecode file written by Write. Any structural deviation
// returns errBadFormat wrapped with the specific line that violated the
// expected shape.
func Read(data []byte) (*File, error) {
	r := &reader{s: bufio.NewScanner(bytes.NewReader(data)), raw: -1}
	r.s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	r.s.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if r.raw >= 0 {
			return splitN(r.raw)(data, atEOF)
		}
		return bufio.ScanLines(data, atEOF)
	})

	if got := r.line(); got != "Linguine Bytecode" {
		return nil, wrapf("expected header %q, got %q", "Linguine Bytecode", got)
	}
	if got := r.line(); got != "Source" {
		return nil, wrapf("expected %q, got %q", "Source", got)
	}
	source := r.line()

	if got := r.line(); got != "Number Of Functions" {
		return nil, wrapf("expected %q, got %q", "Number Of Functions", got)
	}
	n, err := strconv.Atoi(r.line())
	if err != nil {
		return nil, wrapf("invalid function count: %s", err)
	}

	f := &File{Source: source}
	for i := 0; i < n; i++ {
		fn, err := r.function()
		if err != nil {
			return nil, err
		}
		f.Functions = append(f.Functions, fn)
	}
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

func wrapf(format string, args ...interface{}) error {
	return errors.Wrap(errBadFormat, fmt.Sprintf(format, args...))
}

type reader struct {
	s   *bufio.Scanner
	err error
	raw int // blob size while readRawBytes scans one, else -1
}

func (r *reader) line() string {
	if r.err != nil {
		return ""
	}
	if !r.s.Scan() {
		r.err = errBadFormat
		return ""
	}
	return r.s.Text()
}

func (r *reader) function() (Func, error) {
	if r.line() != "Begin Function" {
		return Func{}, errBadFormat
	}
	if r.line() != "Name" {
		return Func{}, errBadFormat
	}
	name := r.line()

	if r.line() != "Parameters" {
		return Func{}, errBadFormat
	}
	k, err := strconv.Atoi(r.line())
	if err != nil {
		return Func{}, wrapf("invalid parameter count: %s", err)
	}
	params := make([]string, k)
	for i := range params {
		params[i] = r.line()
	}

	if r.line() != "Local Size" {
		return Func{}, errBadFormat
	}
	tmpVarSize, err := strconv.Atoi(r.line())
	if err != nil {
		return Func{}, wrapf("invalid local size: %s", err)
	}

	if r.line() != "Bytecode Size" {
		return Func{}, errBadFormat
	}
	size, err := strconv.Atoi(r.line())
	if err != nil {
		return Func{}, wrapf("invalid bytecode size: %s", err)
	}

	code := r.readRawBytes(size)
	if r.err != nil {
		return Func{}, r.err
	}

	if r.line() != "End Function" {
		return Func{}, errBadFormat
	}

	return Func{Name: name, Params: params, TmpVarSize: tmpVarSize, Bytecode: code}, nil
}

// readRawBytes reads exactly n raw bytes followed by the single
// delimiter newline Write appends after the blob, bypassing the line
// scanner (the blob may itself contain NUL or newline bytes).
func (r *reader) readRawBytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	// The scanner has already buffered input past the current line, and
	// its split function cannot be swapped once scanning has started; the
	// one installed by Read returns a token of exactly r.raw bytes while
	// r.raw is set, and lines otherwise.
	r.raw = n
	if !r.s.Scan() {
		r.err = errBadFormat
		return nil
	}
	code := append([]byte(nil), r.s.Bytes()...)
	r.raw = -1
	// consume the single newline Write appended after the blob.
	if !r.s.Scan() {
		r.err = errBadFormat
	}
	return code
}

// splitN returns a bufio.SplitFunc that returns exactly n bytes as one
// token, used once to lift the raw bytecode blob out of the line-oriented
// scan.
func splitN(n int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if len(data) >= n {
			return n, data[:n], nil
		}
		if atEOF {
			return 0, nil, errBadFormat
		}
		return 0, nil, nil
	}
}
