//go:build arm

package jit

import "github.com/tamakomori/linguine/lang/jit/arm32"

const hostSupported = true

func newHostEmitter(fb *FuncBuilder) Emitter { return arm32.New(fb) }
