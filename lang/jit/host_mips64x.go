//go:build mips64 || mips64le

package jit

import "github.com/tamakomori/linguine/lang/jit/mips64"

const hostSupported = true

func newHostEmitter(fb *FuncBuilder) Emitter { return mips64.New(fb) }
