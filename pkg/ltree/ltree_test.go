package ltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "itp"},
		{name: "nested", input: "itp.py.hello"},
		{name: "with underscores and digits", input: "week_1.ex_02"},
		{name: "empty is the zero path", input: ""},
		{name: "empty label", input: "a..b", wantErr: true},
		{name: "invalid character", input: "a.b-c", wantErr: true},
		{name: "trailing dot", input: "a.b.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.input, p.String())
		})
	}
}

func TestLevelAndSubpath(t *testing.T) {
	t.Parallel()

	p := MustParse("w1.a.x")

	assert.Equal(t, 3, p.Level())
	assert.Equal(t, 0, Path{}.Level())

	assert.Equal(t, "w1", p.Subpath(1).String())
	assert.Equal(t, "w1.a", p.Subpath(2).String())
	assert.Equal(t, "w1.a.x", p.Subpath(3).String())
	assert.Equal(t, "w1.a.x", p.Subpath(9).String())
	assert.True(t, p.Subpath(0).IsZero())
}

func TestDescendantOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		prefix string
		want   bool
		strict bool
	}{
		{"w1.a", "w1", true, true},
		{"w1", "w1", true, false},
		{"w10.a", "w1", false, false},
		{"w1.a.x", "w1.a", true, true},
		{"w2.a", "w1", false, false},
		{"w1.a", "", true, true},
	}

	for _, tt := range tests {
		p := MustParse(tt.path)
		prefix := MustParse(tt.prefix)

		assert.Equalf(t, tt.want, p.IsDescendantOf(prefix), "%s <@ %s", tt.path, tt.prefix)
		assert.Equalf(t, tt.strict, p.IsStrictDescendantOf(prefix), "%s strictly under %s", tt.path, tt.prefix)
	}
}

func TestPrefixes(t *testing.T) {
	t.Parallel()

	p := MustParse("a.b.c")

	var got []string
	for _, prefix := range p.Prefixes() {
		got = append(got, prefix.String())
	}

	assert.Equal(t, []string{"a", "a.b", "a.b.c"}, got)
	assert.Nil(t, Path{}.Prefixes())
}

func TestParent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a.b", MustParse("a.b.c").Parent().String())
	assert.True(t, MustParse("a").Parent().IsZero())
}

func TestScanAndValue(t *testing.T) {
	t.Parallel()

	var p Path
	require.NoError(t, p.Scan("itp.py.hello"))
	assert.Equal(t, "itp.py.hello", p.String())

	v, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, "itp.py.hello", v)

	require.NoError(t, p.Scan(nil))
	assert.True(t, p.IsZero())

	require.Error(t, p.Scan(42))
}
