package gc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamakomori/linguine/lang/gc"
	"github.com/tamakomori/linguine/lang/value"
)

func TestAllocWithNoFrameIsImmediatelyDeep(t *testing.T) {
	env := value.NewEnvironment()

	s := gc.AllocString(env, "hi")

	assert.True(t, s.Deep())
	assert.False(t, value.Empty(&env.Tenured))
}

func TestAllocWithActiveFrameIsShallow(t *testing.T) {
	env := value.NewEnvironment()
	fn := value.NewBytecodeFunc("f", "f.lg", nil, nil, 0)
	fr := value.NewFrame(fn)
	env.PushFrame(fr)

	s := gc.AllocString(env, "hi")

	assert.False(t, s.Deep())
	assert.True(t, value.Empty(&env.Tenured))
	assert.False(t, value.Empty(&fr.Shallow))
}

func TestShallowGCReclaimsFrameObjects(t *testing.T) {
	env := value.NewEnvironment()
	fn := value.NewBytecodeFunc("f", "f.lg", nil, nil, 0)
	fr := value.NewFrame(fn)
	env.PushFrame(fr)

	gc.AllocString(env, "transient")
	require.False(t, value.Empty(&fr.Shallow))

	gc.ShallowGC(env, fr)

	assert.True(t, value.Empty(&fr.Shallow))
	assert.True(t, value.Empty(&env.Garbage))
}

func TestPromoteMovesShallowObjectIntoTenured(t *testing.T) {
	env := value.NewEnvironment()
	fn := value.NewBytecodeFunc("f", "f.lg", nil, nil, 0)
	fr := value.NewFrame(fn)
	env.PushFrame(fr)

	arr := gc.AllocArray(env)
	require.False(t, arr.Deep())

	gc.Promote(env, arr)

	assert.True(t, arr.Deep())
	assert.True(t, value.Empty(&fr.Shallow))
	assert.False(t, value.Empty(&env.Tenured))

	// Promoting an already-deep object is a no-op, not a double-link.
	gc.Promote(env, arr)
	assert.True(t, arr.Deep())
}

func TestDeepGCSweepsUnreachableTenuredObjects(t *testing.T) {
	env := value.NewEnvironment()

	kept := gc.AllocString(env, "kept")
	env.Globals.Set("g", value.String(kept))

	gc.AllocString(env, "orphan")

	gc.DeepGC(env)

	found := false
	value.Each(&env.Tenured, value.ObjString, func(o value.Object) {
		if o == value.Object(kept) {
			found = true
		}
	})
	assert.True(t, found, "globally referenced string must survive deep GC")

	count := 0
	value.Each(&env.Tenured, value.ObjString, func(value.Object) { count++ })
	assert.Equal(t, 1, count, "unreachable tenured string must be swept")
}

func TestDeepGCMarksThroughArrayChildren(t *testing.T) {
	env := value.NewEnvironment()

	inner := gc.AllocString(env, "nested")
	arr := gc.AllocArrayFrom(env, []value.Value{value.String(inner)})
	env.Globals.Set("g", value.Array(arr))

	gc.DeepGC(env)

	count := 0
	value.Each(&env.Tenured, value.ObjString, func(value.Object) { count++ })
	assert.Equal(t, 1, count, "string reachable only via array child must survive")
}

func TestHeapUsageTracksAllocationAndShallowGC(t *testing.T) {
	env := value.NewEnvironment()
	fn := value.NewBytecodeFunc("f", "f.lg", nil, nil, 0)
	fr := value.NewFrame(fn)
	env.PushFrame(fr)

	before := gc.HeapUsage(env)
	gc.AllocString(env, "some bytes")
	assert.Greater(t, gc.HeapUsage(env), before)

	gc.ShallowGC(env, fr)
	assert.Equal(t, int64(0), gc.HeapUsage(env))
}
