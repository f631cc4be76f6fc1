package ltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestMsgpackRoundTrip(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Path Path `msgpack:"path"`
	}

	raw, err := msgpack.Marshal(wrapper{Path: MustParse("itp.py.hello")})
	require.NoError(t, err)

	var got wrapper
	require.NoError(t, msgpack.Unmarshal(raw, &got))
	assert.Equal(t, "itp.py.hello", got.Path.String())
}

func TestMsgpackRejectsInvalidPath(t *testing.T) {
	t.Parallel()

	raw, err := msgpack.Marshal("not..valid")
	require.NoError(t, err)

	var p Path
	require.Error(t, msgpack.Unmarshal(raw, &p))
}
