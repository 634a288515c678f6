//go:build arm64

package jit

import "github.com/tamakomori/linguine/lang/jit/arm64"

const hostSupported = true

func newHostEmitter(fb *FuncBuilder) Emitter { return arm64.New(fb) }
