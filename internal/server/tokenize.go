package server

import (
	"github.com/tsls/treesitter-ls/engine/layer"
	"github.com/tsls/treesitter-ls/engine/position"
	"github.com/tsls/treesitter-ls/engine/tokens"
)

// layerSource adapts one Language Layer Tree layer into tokens.LayerSource,
// the shape the Tokenization Pipeline fans Tokenize() out across. It keeps
// engine/tokens independent of tree-sitter by doing the query execution
// here, against the layer's own grammar.
type layerSource struct {
	l          *layer.Layer
	g          *layer.Grammar
	hostText   string
	hostMapper *position.Mapper
	captureMap tokens.CaptureMap
}

func (s *layerSource) Tokenize() ([]tokens.Raw, error) {
	text := s.hostText
	if s.l.RegionID != "" {
		text = s.l.Text(s.hostText)
	}
	return layer.RunHighlightQuery(s.l, s.g, text, s.hostMapper, s.captureMap), nil
}

func (s *layerSource) Name() string {
	if s.l.RegionID == "" {
		return s.l.Language
	}
	return s.l.Language + "/" + string(s.l.RegionID)
}

// layerSources builds one tokens.LayerSource per layer in doc whose
// language has a registered grammar; an unregistered language (already
// logged when injection dropped it) simply contributes no tokens.
func layerSources(doc *layer.Document, registry *layer.LanguageRegistry, captureMap tokens.CaptureMap) []tokens.LayerSource {
	layers := doc.AllLayers()
	out := make([]tokens.LayerSource, 0, len(layers))
	for _, l := range layers {
		g, ok := registry.Lookup(l.Language)
		if !ok {
			continue
		}
		out = append(out, &layerSource{
			l:          l,
			g:          g,
			hostText:   doc.Text(),
			hostMapper: doc.Mapper(),
			captureMap: captureMap,
		})
	}
	return out
}
