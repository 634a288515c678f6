package jit

import "github.com/tamakomori/linguine/lang/jit/abi"

// HelperID, CallArgsCell, PatchKind and Emitter are declared in jit/abi so
// that every jit/<arch> package can implement Emitter without importing
// package jit itself (see abi's doc comment for why). They are aliased
// here so the rest of this package can keep referring to them as if they
// were local, as they were before the cycle-breaking split.
type (
	HelperID     = abi.HelperID
	CallArgsCell = abi.CallArgsCell
	PatchKind    = abi.PatchKind
	Emitter      = abi.Emitter
)

const (
	HelperAdd            = abi.HelperAdd
	HelperSub            = abi.HelperSub
	HelperMul            = abi.HelperMul
	HelperDiv            = abi.HelperDiv
	HelperMod            = abi.HelperMod
	HelperAnd            = abi.HelperAnd
	HelperOr             = abi.HelperOr
	HelperXor            = abi.HelperXor
	HelperNeg            = abi.HelperNeg
	HelperLt             = abi.HelperLt
	HelperLte            = abi.HelperLte
	HelperGt             = abi.HelperGt
	HelperGte            = abi.HelperGte
	HelperEq             = abi.HelperEq
	HelperNeq            = abi.HelperNeq
	HelperLoadArray      = abi.HelperLoadArray
	HelperStoreArray     = abi.HelperStoreArray
	HelperLen            = abi.HelperLen
	HelperDictKeyByIndex = abi.HelperDictKeyByIndex
	HelperDictValByIndex = abi.HelperDictValByIndex
	HelperLoadDot        = abi.HelperLoadDot
	HelperStoreDot       = abi.HelperStoreDot
	HelperLoadSymbol     = abi.HelperLoadSymbol
	HelperStoreSymbol    = abi.HelperStoreSymbol
	HelperSConst         = abi.HelperSConst
	HelperAConst         = abi.HelperAConst
	HelperDConst         = abi.HelperDConst
	HelperCall           = abi.HelperCall
	HelperThisCall       = abi.HelperThisCall
	HelperTruth          = abi.HelperTruth

	NumHelpers = abi.NumHelpers

	PatchUnconditional = abi.PatchUnconditional
	PatchIfTrue        = abi.PatchIfTrue
	PatchIfFalse       = abi.PatchIfFalse
	PatchFlags         = abi.PatchFlags
)
