//go:build 386

package jit

import "github.com/tamakomori/linguine/lang/jit/x86"

const hostSupported = true

func newHostEmitter(fb *FuncBuilder) Emitter { return x86.New(fb) }
