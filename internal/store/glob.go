package store

import "github.com/gobwas/glob"

// compileGlob compiles a Redis-style KEYS pattern (*, ?, [set]) using
// gobwas/glob, which already implements exactly this syntax (it's the same
// matcher the pack's telegraf uses for tag/field name filtering). A
// malformed pattern degenerates to a literal-match glob rather than erroring
// — Redis's KEYS has no notion of a "bad pattern" error.
func compileGlob(pattern string) glob.Glob {
	g, err := glob.Compile(pattern)
	if err != nil {
		g = glob.MustCompile(glob.QuoteMeta(pattern))
	}
	return g
}
