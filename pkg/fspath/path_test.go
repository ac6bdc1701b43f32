package fspath

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "root", input: "/", want: "/"},
		{name: "simple", input: "/a/b", want: "/a/b"},
		{name: "empty components dropped", input: "/a//b/", want: "/a/b"},
		{name: "missing leading slash", input: "a/b", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "colon rejected", input: "/a:b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"/", "/a", "/a/b/c", "/x/y"} {
		p, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.String())

		q, err := Parse(p.String())
		require.NoError(t, err)
		assert.True(t, p.Equal(q))
	}
}

func TestJoin(t *testing.T) {
	p, err := Join(MustParse("/a"), "b")
	require.NoError(t, err)
	assert.Equal(t, "/a/b", p.String())

	_, err = Join(Root(), "")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = Join(Root(), "a/b")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = Join(Root(), "a:b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestParentAndLast(t *testing.T) {
	p := MustParse("/a/b/c")

	parent, err := p.Parent()
	require.NoError(t, err)
	assert.Equal(t, "/a/b", parent.String())

	last, err := p.Last()
	require.NoError(t, err)
	assert.Equal(t, "c", last)

	_, err = Root().Parent()
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = Root().Last()
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestIsSubpath(t *testing.T) {
	p := MustParse("/a/b/c")

	assert.True(t, p.IsSubpath(Root()))
	assert.True(t, p.IsSubpath(MustParse("/a")))
	assert.True(t, p.IsSubpath(MustParse("/a/b")))
	assert.True(t, p.IsSubpath(p), "every path is a subpath of itself")
	assert.False(t, p.IsSubpath(MustParse("/a/x")))
	assert.False(t, p.IsSubpath(MustParse("/a/b/c/d")))
}

func TestCompareAncestorsFirst(t *testing.T) {
	assert.Negative(t, Root().Compare(MustParse("/a")))
	assert.Negative(t, MustParse("/a").Compare(MustParse("/a/b")))
	assert.Negative(t, MustParse("/a").Compare(MustParse("/b")))
	assert.Negative(t, MustParse("/a/z").Compare(MustParse("/b/a")))
	assert.Positive(t, MustParse("/b").Compare(MustParse("/a/z")))
	assert.Zero(t, MustParse("/a/b").Compare(MustParse("/a/b")))
}

func TestCompareIsTotalOrder(t *testing.T) {
	paths := []Path{
		MustParse("/b"),
		MustParse("/a/b/c"),
		Root(),
		MustParse("/a"),
		MustParse("/a/b"),
		MustParse("/a/c"),
	}

	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Compare(paths[j]) < 0
	})

	got := make([]string, len(paths))
	for i, p := range paths {
		got[i] = p.String()
	}
	assert.Equal(t, []string{"/", "/a", "/a/b", "/a/b/c", "/a/c", "/b"}, got)

	// Every ancestor sorts before each of its descendants: no path
	// later in the order may be a strict prefix of an earlier one.
	for i, p := range paths {
		for _, q := range paths[i+1:] {
			assert.False(t, p.IsSubpath(q) && !q.Equal(p),
				"%s sorts before its ancestor %s", p, q)
		}
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, MustParse("/a/b").Equal(MustParse("/a//b")))
	assert.False(t, MustParse("/a").Equal(MustParse("/a/b")))
	assert.True(t, Root().Equal(MustParse("/")))
}
