package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeysAndSkipsHTMLEscaping(t *testing.T) {
	out, err := Marshal(map[string]any{
		"zeta":  1,
		"alpha": "<b>",
		"mid":   []int{3, 2, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"<b>","mid":[3,2,1],"zeta":1}`, string(out))
}

func TestMarshalHonoursStructTags(t *testing.T) {
	type record struct {
		Seed  int64  `json:"seed"`
		Level int    `json:"security_level"`
		Name  string `json:"name,omitempty"`
	}
	out, err := Marshal(record{Seed: 42, Level: 256})
	require.NoError(t, err)
	assert.Equal(t, `{"security_level":256,"seed":42}`, string(out))
}

func TestHashIsOrderIndependent(t *testing.T) {
	a, err := Hash(map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	b, err := Hash(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashBytesKnownVector(t *testing.T) {
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		HashBytes([]byte("abc")))
}
