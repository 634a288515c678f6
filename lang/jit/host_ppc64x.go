//go:build ppc64le

package jit

import "github.com/tamakomori/linguine/lang/jit/ppc64"

const hostSupported = true

func newHostEmitter(fb *FuncBuilder) Emitter { return ppc64.New(fb) }
