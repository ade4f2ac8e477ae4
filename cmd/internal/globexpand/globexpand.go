// Package globexpand expands glob patterns in positional command-line
// arguments against the local filesystem, the same way
// cmd/grail-file/cmd/cmd.go expands source arguments before acting on
// them, adapted to BlockFS's flat directory-file layout (no recursive
// listing: directory files do not nest the way grail-file's object
// store paths do).
package globexpand

import (
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/gobwas/glob/syntax"
	"github.com/gobwas/glob/syntax/ast"
)

// hasMeta parses str as a glob pattern and reports whether it contains
// any glob metacharacter.
func hasMeta(str string) bool {
	node, err := syntax.Parse(str)
	if err != nil {
		return false
	}
	if node.Kind != ast.KindPattern {
		return false
	}
	return len(node.Children) != 1 || node.Children[0].Kind != ast.KindText
}

// One expands a single pattern against the directory it names. If the
// pattern has no glob metacharacter, or matches nothing, or fails to
// compile, One returns {pattern} unchanged, matching expandGlob's
// fail-open behavior in cmd/grail-file/cmd/cmd.go.
func One(pattern string) []string {
	if !hasMeta(pattern) {
		return []string{pattern}
	}
	m, err := glob.Compile(pattern, '/')
	if err != nil {
		return []string{pattern}
	}
	dir := filepath.Dir(pattern)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{pattern}
	}
	var matches []string
	for _, e := range entries {
		candidate := filepath.Join(dir, e.Name())
		if m.Match(candidate) {
			matches = append(matches, candidate)
		}
	}
	if len(matches) == 0 {
		return []string{pattern}
	}
	return matches
}

// All calls One on each pattern and concatenates the results, in
// order, duplicating cmd/grail-file/cmd/cmd.go's expandGlobs.
func All(patterns []string) []string {
	var matches []string
	for _, p := range patterns {
		matches = append(matches, One(p)...)
	}
	return matches
}
