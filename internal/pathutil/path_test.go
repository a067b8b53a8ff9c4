package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{".", ""},
		{"/", ""},
		{"a/b.txt", "a/b.txt"},
		{"/a/b.txt", "a/b.txt"},
		{"///a/b.txt", "a/b.txt"},
		{"a//b.txt", "a/b.txt"},
		{"a/b/", "a/b/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestBase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".", Base(""))
	assert.Equal(t, ".", Base("."))
	assert.Equal(t, "b.txt", Base("a/b.txt"))
	assert.Equal(t, "b", Base("a/b/"))
	assert.Equal(t, "a", Base("a"))
}

func TestChild(t *testing.T) {
	t.Parallel()

	child, sub := Child("a/b/c.txt", "a/")
	assert.Equal(t, "b", child)
	assert.True(t, sub)

	child, sub = Child("a/c.txt", "a/")
	assert.Equal(t, "c.txt", child)
	assert.False(t, sub)

	assert.Equal(t, "", DirPrefix("."))
	assert.Equal(t, "a/", DirPrefix("a"))
}
