package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamakomori/linguine/lang/bytecode"
)

func TestWriteReadRoundTrip(t *testing.T) {
	f := &bytecode.File{
		Source: "main.lg",
		Functions: []bytecode.Func{
			{
				Name:       "main",
				Params:     nil,
				TmpVarSize: 3,
				Bytecode:   []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x0a},
			},
			{
				Name:       "add",
				Params:     []string{"a", "b"},
				TmpVarSize: 2,
				Bytecode:   []byte{0x07, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02},
			},
		},
	}

	data := bytecode.Write(f)
	got, err := bytecode.Read(data)
	require.NoError(t, err)

	assert.Equal(t, f.Source, got.Source)
	require.Len(t, got.Functions, 2)
	assert.Equal(t, f.Functions[0], got.Functions[0])
	assert.Equal(t, f.Functions[1], got.Functions[1])
}

func TestReadRejectsBadHeader(t *testing.T) {
	_, err := bytecode.Read([]byte("Not Linguine Bytecode\n"))
	require.Error(t, err)
}

func TestReadRejectsTruncatedFile(t *testing.T) {
	data := bytecode.Write(&bytecode.File{
		Source: "x.lg",
		Functions: []bytecode.Func{
			{Name: "f", TmpVarSize: 1, Bytecode: []byte{0x01, 0x02, 0x03}},
		},
	})
	_, err := bytecode.Read(data[:len(data)-5])
	require.Error(t, err)
}

func TestBytecodeWithEmbeddedNewlinesRoundTrips(t *testing.T) {
	f := &bytecode.File{
		Source: "x.lg",
		Functions: []bytecode.Func{
			{Name: "f", TmpVarSize: 0, Bytecode: []byte{0x03, 0x00, 0x00, '\n', 0x00, 0x00, 0x00, 'h', 'i', 0}},
		},
	}
	data := bytecode.Write(f)
	got, err := bytecode.Read(data)
	require.NoError(t, err)
	assert.Equal(t, f.Functions[0].Bytecode, got.Functions[0].Bytecode)
}
