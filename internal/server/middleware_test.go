package server

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/tsls/treesitter-ls/pkg/metrics"
)

type fakeRequest struct {
	jsonrpc2.Request
	method string
}

func (r fakeRequest) Method() string { return r.method }

func TestChainAppliesMiddlewareOutermostFirst(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next jsonrpc2.Handler) jsonrpc2.Handler {
			return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
				order = append(order, name)
				return next(ctx, reply, req)
			}
		}
	}
	base := func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		order = append(order, "base")
		return nil
	}

	h := Chain(base, mark("outer"), mark("inner"))
	err := h(context.Background(), nil, fakeRequest{method: "test"})

	require.NoError(t, err)
	require.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestRecoverTurnsPanicIntoReply(t *testing.T) {
	panicking := func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		panic("boom")
	}
	h := Recover(zap.NewNop())(panicking)

	var repliedErr error
	replier := func(ctx context.Context, result interface{}, err error) error {
		repliedErr = err
		return nil
	}

	err := h(context.Background(), replier, fakeRequest{method: "test"})
	require.NoError(t, err)
	require.Error(t, repliedErr)
}

func TestMetricsCountsAllMethodsInOneTotal(t *testing.T) {
	reg := metrics.New()
	h := Metrics(reg)(func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		return nil
	})

	require.NoError(t, h(context.Background(), nil, fakeRequest{method: "textDocument/didOpen"}))
	require.NoError(t, h(context.Background(), nil, fakeRequest{method: "textDocument/didChange"}))

	rendered := reg.Render()
	require.True(t, strings.Contains(rendered, "treesitter_ls_requests_total 2"))
	require.True(t, strings.Contains(rendered, "treesitter_ls_request_duration_seconds"))
}

func TestMetricsNilRegistryIsNoop(t *testing.T) {
	called := false
	h := Metrics(nil)(func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		called = true
		return nil
	})
	require.NoError(t, h(context.Background(), nil, fakeRequest{method: "test"}))
	require.True(t, called)
}

func TestRecoverPassesThroughNonPanickingHandler(t *testing.T) {
	h := Recover(zap.NewNop())(func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		return nil
	})
	err := h(context.Background(), func(ctx context.Context, result interface{}, err error) error { return nil }, fakeRequest{method: "test"})
	require.NoError(t, err)
}
