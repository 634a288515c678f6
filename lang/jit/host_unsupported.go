//go:build !(amd64 || 386 || arm64 || arm || mips64 || mips64le || ppc64le)

package jit

// hostSupported is false on every GOARCH without a wired
// native emitter and assembly trampoline. jit.Compile checks this
// before ever calling
// newHostEmitter, so the function below is unreachable and exists only
// to satisfy the package's internal call shape.
const hostSupported = false

func newHostEmitter(fb *FuncBuilder) Emitter {
	panic("jit: newHostEmitter called with no host architecture support")
}
