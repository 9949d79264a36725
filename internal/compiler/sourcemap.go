package compiler

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// SourceMap maps declaration paths ("formats.Accel",
// "pipelines.fuse.steps.sum") to CUE source positions. The IR itself
// carries no positions: two textually different files with the same
// declarations must hash identically, so positions travel beside the IR,
// not inside it.
type SourceMap struct {
	pos map[string]token.Pos
}

// NewSourceMap returns an empty SourceMap.
func NewSourceMap() *SourceMap {
	return &SourceMap{pos: make(map[string]token.Pos)}
}

// Record stores the position of a declaration path.
func (m *SourceMap) Record(path string, pos token.Pos) {
	m.pos[path] = pos
}

// Pos returns the recorded position for path, if any.
func (m *SourceMap) Pos(path string) (token.Pos, bool) {
	p, ok := m.pos[path]
	return p, ok
}

// Lookup renders the recorded position as "file.cue:12:7", or "" when
// the path has no recorded position. Diagnostics consume this form.
func (m *SourceMap) Lookup(path string) string {
	if m == nil {
		return ""
	}
	p, ok := m.pos[path]
	if !ok || !p.IsValid() {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename(), p.Line(), p.Column())
}
