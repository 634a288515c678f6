//go:build amd64

package jit

import "github.com/tamakomori/linguine/lang/jit/x86_64"

const hostSupported = true

func newHostEmitter(fb *FuncBuilder) Emitter { return x86_64.New(fb) }
