package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCore(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"x.rar", true},
		{"x.zip", true},
		{"x.7z", true},
		{"x.7z.001", true},
		{"X.ZIP", true},
		{"Data.7Z.001", true},
		{"x.r01", false},
		{"x.r00", false},
		{"x.z02", false},
		{"x.7z.002", false},
		{"x.7z.010", false},
		{"x.001", false},
		{"x.txt", false},
		{"x.tar.gz", false},
		{"movie.mkv", false},
		{"", false},
		{"zip", false},
		{"/some/dir/nested.rar", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsCore(tc.name), "IsCore(%q)", tc.name)
	}
}

func TestIsCoreIsPure(t *testing.T) {
	// Same input must always give the same answer.
	for i := 0; i < 3; i++ {
		assert.True(t, IsCore("a.7z.001"))
		assert.False(t, IsCore("a.7z.002"))
	}
}

func TestIsSplitSegment(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"x.r00", true},
		{"x.r01", true},
		{"x.r123", true},
		{"x.001", true},
		{"x.003", true},
		{"x.z01", true},
		{"x.Z02", true},
		{"x.7z.001", true},
		{"x.7z.003", true},
		{"x.txt", false},
		{"x.zip", false},
		{"x.rar", false},
		{"x.7z", false},
		{"x.z1", false},
		{"readme.md", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsSplitSegment(tc.name), "IsSplitSegment(%q)", tc.name)
	}
}

func TestFamilyKey(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"x.zip", "x"},
		{"x.rar", "x"},
		{"movie.7z.001", "movie.7z"},
		{"some.movie.rar", "some.movie"},
		{"/src/dir/a.zip", "a"},
		{"noext", "noext"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FamilyKey(tc.name), "FamilyKey(%q)", tc.name)
	}
}
