package bridge

// Coordinate translation between host and virtual-document line numbers.
// Columns are unchanged by translation (the region's offset only ever
// shifts the first line, which the Position Mapper already accounts for
// when the virtual document's text is extracted); only line numbers shift
// by the region's starting line in the host document.

// ToVirtualLine converts a host line number into the virtual document's
// line numbering for a region starting at hostStartLine.
func ToVirtualLine(hostLine, hostStartLine int) int {
	return hostLine - hostStartLine
}

// ToHostLine converts a virtual-document line number back into host
// coordinates.
func ToHostLine(virtualLine, hostStartLine int) int {
	return virtualLine + hostStartLine
}

// position/range/location shapes kept as map[string]any so this package
// can recursively walk arbitrary go.lsp.dev/protocol response payloads
// (already decoded into generic JSON) without needing a case for every
// concrete LSP type the bridge might ever forward.

// TranslateResponse recursively walks a decoded JSON-RPC result value,
// translating every "line" field that sits inside a "position"-shaped or
// "range"-shaped object from virtual to host coordinates, and rewriting
// every string value equal to virtualURI into hostURI. It covers Location,
// LocationLink, Range (inside Hover/CodeAction/Edit/InlayHint), and
// TextEdit inside WorkspaceEdit.changes/documentChanges, all of which
// share the same {range: {start: {line,...}, end: {line,...}}} or bare
// {line, character} shape.
func TranslateResponse(v any, hostStartLine int, virtualURI, hostURI string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if k == "line" {
				if line, ok := asInt(child); ok {
					out[k] = ToHostLine(line, hostStartLine)
					continue
				}
			}
			if k == "uri" || k == "targetUri" {
				if s, ok := child.(string); ok && s == virtualURI {
					out[k] = hostURI
					continue
				}
			}
			out[k] = TranslateResponse(child, hostStartLine, virtualURI, hostURI)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = TranslateResponse(child, hostStartLine, virtualURI, hostURI)
		}
		return out
	case string:
		if val == virtualURI {
			return hostURI
		}
		return val
	default:
		return v
	}
}

// TranslateRequest is the mirror operation applied to outgoing request
// params: host lines become virtual lines, and the host URI is replaced
// with the virtual URI. Request params are far more constrained in shape
// (the server itself builds them), so only the documented position/range
// fields plus the document identifier URI are translated.
func TranslateRequest(v any, hostStartLine int, hostURI, virtualURI string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if k == "line" {
				if line, ok := asInt(child); ok {
					out[k] = ToVirtualLine(line, hostStartLine)
					continue
				}
			}
			if k == "uri" {
				if s, ok := child.(string); ok && s == hostURI {
					out[k] = virtualURI
					continue
				}
			}
			out[k] = TranslateRequest(child, hostStartLine, hostURI, virtualURI)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = TranslateRequest(child, hostStartLine, hostURI, virtualURI)
		}
		return out
	default:
		return v
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case uint32:
		return int(n), true
	default:
		return 0, false
	}
}
