package server

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/engine/layer"
)

// loadQueries reads each builtin language's highlights.scm/injections.scm
// out of dataDir/<language>/, the layout the data-directory install step
// writes (spec.md §6's "grammar/query installation writes to the
// configured data directory"). A language with no subdirectory, or with
// one query file but not the other, is tolerated: layer.RegisterBuiltins
// simply leaves the missing query nil for that language.
func loadQueries(dataDir string, log *zap.Logger) map[string]layer.LanguageQueries {
	out := map[string]layer.LanguageQueries{}
	if dataDir == "" {
		return out
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		log.Debug("data dir not readable, starting with no query sources", zap.String("dataDir", dataDir), zap.Error(err))
		return out
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lang := e.Name()
		dir := filepath.Join(dataDir, lang)
		q := layer.LanguageQueries{}
		if b, err := os.ReadFile(filepath.Join(dir, "highlights.scm")); err == nil {
			q.Highlights = string(b)
		}
		if b, err := os.ReadFile(filepath.Join(dir, "injections.scm")); err == nil {
			q.Injections = string(b)
		}
		out[lang] = q
	}
	return out
}
