package layer

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tsls/treesitter-ls/engine/injection"
	"github.com/tsls/treesitter-ls/engine/position"
	"github.com/tsls/treesitter-ls/engine/tokens"
)

// RunInjectionQuery executes a grammar's injection query against tree and
// adapts each match into an injection.Match, the shape the resolver
// operates on. It is the default MatchSource wired by internal/server.
func RunInjectionQuery(g *Grammar, tree *sitter.Tree, text string) []injection.Match {
	if g.InjectionQuery == nil {
		return nil
	}
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	src := []byte(text)
	matches := cursor.Matches(g.InjectionQuery, tree.RootNode(), src)

	var out []injection.Match
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		mt := injection.Match{PatternIndex: int(m.PatternIndex)}
		for _, cap := range m.Captures {
			name := g.InjectionQuery.CaptureNames()[cap.Index]
			c := injection.Capture{
				Name:      name,
				StartByte: int(cap.Node.StartByte()),
				EndByte:   int(cap.Node.EndByte()),
			}
			if name == "injection.language" {
				c.Text = text[c.StartByte:c.EndByte]
			}
			mt.Captures = append(mt.Captures, c)
		}
		for _, prop := range g.InjectionQuery.PropertySettings(uint(m.PatternIndex)) {
			switch prop.Key {
			case "injection.language":
				if prop.Value != nil {
					mt.StaticLanguage = *prop.Value
				}
			case "injection.offset":
				// Parsed by the grammar's query source as four
				// comma-separated integers; grammars without this
				// directive simply never set HasPropOffset.
				if prop.Value != nil {
					if off, ok := parseOffsetProperty(*prop.Value); ok {
						mt.PropOffset = off
						mt.HasPropOffset = true
					}
				}
			}
		}
		out = append(out, mt)
	}
	return out
}

// RunHighlightQuery executes l's grammar's highlight query over its parse
// tree and emits one raw token per surviving capture, in host coordinates
// at l's depth — the per-layer step of the Tokenization Pipeline
// (spec.md §4.6 steps 1-4). localText is the text l's tree was parsed
// from: the full host text for the host layer, l.Text(hostText) for
// every injected layer. Captures the capture map drops produce no token,
// per spec.md §4.6 step 3.
func RunHighlightQuery(l *Layer, g *Grammar, localText string, hostMapper *position.Mapper, cm tokens.CaptureMap) []tokens.Raw {
	if g.HighlightQuery == nil || l.Tree == nil {
		return nil
	}
	root := l.Tree.RootNode()
	if root == nil {
		return nil
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	text := []byte(localText)
	matches := cursor.Matches(g.HighlightQuery, root, text)

	var out []tokens.Raw
	names := g.HighlightQuery.CaptureNames()
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		for _, cap := range m.Captures {
			name := names[cap.Index]
			tokenType, ok := cm.Resolve(name)
			if !ok {
				continue
			}
			localStart := int(cap.Node.StartByte())
			localEnd := int(cap.Node.EndByte())
			if localEnd <= localStart {
				continue
			}
			hostStart := l.LocalToHost(localStart)
			pos := hostMapper.ByteToPosition(hostStart)
			out = append(out, tokens.Raw{
				Line:      int(pos.Line),
				Column:    int(pos.Character),
				Length:    localEnd - localStart,
				TokenType: tokenType,
				Depth:     l.Depth,
			})
		}
	}
	return out
}

func parseOffsetProperty(v string) (injection.Offset, bool) {
	var a, b, c, d int
	n, err := fmt.Sscanf(v, "%d,%d,%d,%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return injection.Offset{}, false
	}
	return injection.Offset{StartRow: a, StartColumn: b, EndRow: c, EndColumn: d}, true
}
