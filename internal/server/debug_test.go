package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestInitializeStartsDebugServerWhenMetricsPortConfigured(t *testing.T) {
	s := newTestServer()
	port := freePort(t)
	opts := json.RawMessage(fmt.Sprintf(`{"metricsPort": %d}`, port))

	_, err := s.Initialize(context.Background(), &protocol.InitializeParams{InitializationOptions: opts})
	require.NoError(t, err)

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, body)

	shutCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.debugServer.Shutdown(shutCtx))
}

func TestInitializeWithoutMetricsPortStartsNoDebugServer(t *testing.T) {
	s := newTestServer()
	_, err := s.Initialize(context.Background(), &protocol.InitializeParams{})
	require.NoError(t, err)
	require.Nil(t, s.debugServer)
}
