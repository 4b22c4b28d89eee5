package extract

import "github.com/opensession/opensession-go/internal/cil"

// DefaultPluginName is the scoring plugin every registry carries and cannot
// be removed.
const DefaultPluginName = "default"

// ScoreFunc is a pure function from a session to a usefulness score. Higher
// is more noteworthy.
type ScoreFunc func(cil.Session) int64

// Registry maps a scoring-plugin name to the function that computes it.
// DEFAULT is always present; Score falls back to it on an unknown name and
// tells the caller which plugin actually ran, rather than erroring.
type Registry struct {
	plugins map[string]ScoreFunc
}

// NewRegistry returns a registry seeded with the default plugin plus any
// extras supplied by the caller. A caller-supplied "default" overrides the
// built-in one.
func NewRegistry(extra map[string]ScoreFunc) *Registry {
	plugins := make(map[string]ScoreFunc, len(extra)+1)
	plugins[DefaultPluginName] = defaultScore
	for name, fn := range extra {
		plugins[name] = fn
	}
	return &Registry{plugins: plugins}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.plugins[name]
	return ok
}

// Score runs the named plugin against s. If name is empty or unregistered it
// falls back to DEFAULT and reports the plugin name actually used so the
// caller can surface it (e.g. in an upload response).
func (r *Registry) Score(s cil.Session, name string) (score int64, usedPlugin string) {
	fn, ok := r.plugins[name]
	if !ok {
		fn, name = r.plugins[DefaultPluginName], DefaultPluginName
	}
	return fn(s), name
}

// defaultScore weighs a session by how much it did and whether it hit
// trouble: tool calls and distinct tasks count up, a session that never
// called a tool scores zero, and hitting an error knocks the score down
// without letting it go negative.
func defaultScore(s cil.Session) int64 {
	if s.Stats.ToolCallCount == 0 {
		return 0
	}
	score := int64(s.Stats.ToolCallCount)*2 + int64(s.Stats.TaskCount)*5 + int64(s.Stats.MessageCount)
	if _, _, hasErrors := FileMetadata(s); hasErrors {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	return score
}
