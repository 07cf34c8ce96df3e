package server

import (
	"context"
	"encoding/json"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/internal/notifybus"
)

// RelayNotification forwards one notification to the editor unchanged,
// dispatching on its LSP method name. cmd/treesitter-ls registers it as the
// single notifybus subscriber; the bridge publishes nothing to the bus, so
// downstream notifications never reach it.
func RelayNotification(ctx context.Context, client protocol.Client, log *zap.Logger, n notifybus.Notification) {
	raw, err := json.Marshal(n.Params)
	if err != nil {
		log.Warn("marshal relayed notification params", zap.String("method", n.Method), zap.Error(err))
		return
	}

	var relayErr error
	switch n.Method {
	case "textDocument/publishDiagnostics":
		var params protocol.PublishDiagnosticsParams
		if relayErr = json.Unmarshal(raw, &params); relayErr == nil {
			relayErr = client.PublishDiagnostics(ctx, &params)
		}
	case "window/showMessage":
		var params protocol.ShowMessageParams
		if relayErr = json.Unmarshal(raw, &params); relayErr == nil {
			relayErr = client.ShowMessage(ctx, &params)
		}
	case "window/logMessage":
		var params protocol.LogMessageParams
		if relayErr = json.Unmarshal(raw, &params); relayErr == nil {
			relayErr = client.LogMessage(ctx, &params)
		}
	case "$/progress":
		var params protocol.ProgressParams
		if relayErr = json.Unmarshal(raw, &params); relayErr == nil {
			relayErr = client.Progress(ctx, &params)
		}
	default:
		log.Debug("dropping relayed notification with unknown method", zap.String("method", n.Method), zap.String("language", n.Language))
		return
	}
	if relayErr != nil {
		log.Warn("relay notification", zap.String("method", n.Method), zap.String("language", n.Language), zap.Error(relayErr))
	}
}
