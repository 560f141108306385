package token

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocString(t *testing.T) {
	l := Loc{File: "Foo.fble", Line: 3, Col: 14}
	assert.Equal(t, "Foo.fble:3:14", l.String())
	assert.False(t, l.Unknown())
	assert.True(t, Loc{File: "x"}.Unknown())
}

func TestNameString(t *testing.T) {
	assert.Equal(t, "x", Name{Name: "x"}.String())
	assert.Equal(t, "List@", Name{Name: "List", Space: TypeNamespace}.String())
	assert.True(t, NamesEqual(
		Name{Name: "x", Loc: Loc{Line: 1}},
		Name{Name: "x", Loc: Loc{Line: 9}}))
	assert.False(t, NamesEqual(
		Name{Name: "x"},
		Name{Name: "x", Space: TypeNamespace}))
}

func TestParseModulePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "/Foo%", want: "/Foo%"},
		{in: "/Foo/Bar%", want: "/Foo/Bar%"},
		{in: "Foo%", err: true},
		{in: "/Foo", err: true},
		{in: "//Foo%", err: true},
		{in: "/%", err: true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			p, err := ParseModulePath(c.in)
			if c.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, p.String())
		})
	}
}

func TestPathsEqual(t *testing.T) {
	a, err := ParseModulePath("/Foo/Bar%")
	require.NoError(t, err)
	b, err := ParseModulePath("/Foo/Bar%")
	require.NoError(t, err)
	c, err := ParseModulePath("/Foo%")
	require.NoError(t, err)

	assert.True(t, PathsEqual(a, b))
	assert.True(t, PathsEqual(a, a))
	assert.False(t, PathsEqual(a, c))
	assert.False(t, PathsEqual(a, nil))
}

func TestContainedIn(t *testing.T) {
	mod, err := ParseModulePath("/Secret/Impl%")
	require.NoError(t, err)
	pkg, err := ParseModulePath("/Secret%")
	require.NoError(t, err)
	other, err := ParseModulePath("/Client%")
	require.NoError(t, err)

	assert.True(t, mod.ContainedIn(pkg))
	assert.True(t, pkg.ContainedIn(pkg))
	assert.False(t, other.ContainedIn(pkg))
	assert.False(t, pkg.ContainedIn(mod))
}

func TestSearchConfigFromEnv(t *testing.T) {
	t.Setenv("FBLE_PACKAGE_PATH", "/a/pkgs:/b/pkgs")
	cfg, err := SearchConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/pkgs", "/b/pkgs"}, cfg.PackagePath)

	cfg.AddPackage("/c/pkgs")
	assert.Equal(t, "/c/pkgs", cfg.PackagePath[0], "flag packages take priority")
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Foo"), 0o755))
	file := filepath.Join(dir, "Foo", "Bar.fble")
	require.NoError(t, os.WriteFile(file, []byte("*();"), 0o600))

	var cfg SearchConfig
	cfg.AddIncludeDir(dir)

	p, err := ParseModulePath("/Foo/Bar%")
	require.NoError(t, err)
	assert.Equal(t, file, cfg.Locate(p))

	missing, err := ParseModulePath("/Foo/Baz%")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Locate(missing))
}

func TestFindPackage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "core"), 0o755))

	var cfg SearchConfig
	cfg.AddPackage(dir)
	assert.Equal(t, filepath.Join(dir, "core"), cfg.FindPackage("core"))
	assert.Equal(t, "", cfg.FindPackage("missing"))
}
