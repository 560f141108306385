package token

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
)

// SearchConfig holds the directories consulted when resolving module
// paths to files on disk. Include directories are searched as-is;
// package roots are searched for a directory named after the package.
type SearchConfig struct {
	// PackagePath is the list of package root directories, from the
	// FBLE_PACKAGE_PATH environment variable (colon-separated).
	PackagePath []string `env:"FBLE_PACKAGE_PATH" envSeparator:":"`

	// IncludeDirs is the list of -I directories, highest priority first.
	IncludeDirs []string `env:"-"`
}

// SearchConfigFromEnv builds a SearchConfig from the process
// environment.
func SearchConfigFromEnv() (*SearchConfig, error) {
	var cfg SearchConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AddIncludeDir appends an include directory (the -I flag).
func (c *SearchConfig) AddIncludeDir(dir string) {
	c.IncludeDirs = append(c.IncludeDirs, dir)
}

// AddPackage prepends a package search root (the -p flag), taking
// priority over roots from the environment.
func (c *SearchConfig) AddPackage(dir string) {
	c.PackagePath = append([]string{dir}, c.PackagePath...)
}

// FindPackage returns the directory of the named package, or "" if it
// is not found under any package root.
func (c *SearchConfig) FindPackage(name string) string {
	for _, root := range c.PackagePath {
		dir := filepath.Join(root, name)
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	return ""
}

// Locate resolves a module path to a .fble file under the search
// directories, or "" if no file exists for it.
func (c *SearchConfig) Locate(p *ModulePath) string {
	rel := make([]string, 0, len(p.Path))
	for _, n := range p.Path {
		rel = append(rel, n.Name)
	}
	relPath := strings.Join(rel, string(filepath.Separator)) + ".fble"
	for _, dir := range c.IncludeDirs {
		f := filepath.Join(dir, relPath)
		if fi, err := os.Stat(f); err == nil && !fi.IsDir() {
			return f
		}
	}
	for _, root := range c.PackagePath {
		f := filepath.Join(root, relPath)
		if fi, err := os.Stat(f); err == nil && !fi.IsDir() {
			return f
		}
	}
	return ""
}
