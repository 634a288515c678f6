// Package asmutil provides the small byte-buffer primitive every
// per-ISA emitter package (jit/x86, jit/x86_64, jit/arm32, jit/arm64,
// jit/mips64, jit/ppc32, jit/ppc64) builds its instruction encoding on.
// It intentionally knows nothing about any particular ISA: each emitter
// decides what bytes mean, asmutil only tracks the growing buffer and its
// current offset (the native cursor).
package asmutil

import "encoding/binary"

// Buf is an append-only machine-code buffer with helpers for the integer
// widths instruction encodings need. All multi-byte fields below use the
// requesting ISA's own endianness because arm/mips/ppc big-endian builds
// exist historically even though every target Go itself builds for today
// is little-endian; each emitter picks LE or BE explicitly per call
// rather than asmutil assuming one.
type Buf struct {
	b []byte
}

// Len returns the current write offset, i.e. the native code offset the
// next emitted byte will land at.
func (b *Buf) Len() int { return len(b.b) }

// Bytes returns the accumulated buffer.
func (b *Buf) Bytes() []byte { return b.b }

// U8 appends one byte.
func (b *Buf) U8(v byte) { b.b = append(b.b, v) }

// Raw appends raw bytes verbatim.
func (b *Buf) Raw(v []byte) { b.b = append(b.b, v...) }

// U16LE/U32LE/U64LE append little-endian integers (x86, x86_64, arm32,
// arm64, mips64le, ppc64le).
func (b *Buf) U16LE(v uint16) { b.b = binary.LittleEndian.AppendUint16(b.b, v) }
func (b *Buf) U32LE(v uint32) { b.b = binary.LittleEndian.AppendUint32(b.b, v) }
func (b *Buf) U64LE(v uint64) { b.b = binary.LittleEndian.AppendUint64(b.b, v) }

// U32BE appends a big-endian 32-bit word, the natural instruction unit
// for mips64/ppc32/ppc64 in their historical big-endian ABIs.
func (b *Buf) U32BE(v uint32) { b.b = binary.BigEndian.AppendUint32(b.b, v) }

// PatchU32LE overwrites the 4 bytes at offset with v, used to resolve a
// previously emitted branch displacement once its target's native offset
// is known.
func (b *Buf) PatchU32LE(offset int, v uint32) {
	binary.LittleEndian.PutUint32(b.b[offset:offset+4], v)
}

// PatchU32BE is PatchU32LE's big-endian counterpart.
func (b *Buf) PatchU32BE(offset int, v uint32) {
	binary.BigEndian.PutUint32(b.b[offset:offset+4], v)
}

// PatchU64LE overwrites 8 bytes at offset, used when a patched site
// carries an absolute 64-bit address rather than a displacement.
func (b *Buf) PatchU64LE(offset int, v uint64) {
	binary.LittleEndian.PutUint64(b.b[offset:offset+8], v)
}

// Reserve appends n zero bytes and returns the offset they start at, for
// call sites that need to patch a field in place later (relocations,
// branch displacements).
func (b *Buf) Reserve(n int) int {
	off := len(b.b)
	b.b = append(b.b, make([]byte, n)...)
	return off
}
