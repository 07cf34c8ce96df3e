package bridge

import (
	"context"
	"sync"
)

// supersedable request classes: only incremental-completion and
// signature-help requests are superseded, whenever a newer request of the
// same class arrives for the same document while an earlier one is still in
// flight (not only during downstream initialization); hover and structural
// requests (definition, references, ...) never are.
const (
	ClassCompletion     = "textDocument/completion"
	ClassSignatureHelp  = "textDocument/signatureHelp"
)

func isSupersedable(method string) bool {
	return method == ClassCompletion || method == ClassSignatureHelp
}

// ErrSuperseded is returned by the manager for an outdated supersedable
// request; the caller maps it to LSP error -32803 REQUEST_FAILED with a
// message containing "superseded".
type ErrSuperseded struct {
	Method string
}

func (e *ErrSuperseded) Error() string {
	return "superseded: a newer " + e.Method + " request arrived for this document"
}

// supersedeTracker holds, per (document, method class), only the single
// most recently begun request: Begin immediately cancels whatever request
// was previously pending for that class before recording the new one, so
// an earlier request is failed eagerly instead of only being discovered
// stale after its downstream round trip completes.
type supersedeTracker struct {
	mu      sync.Mutex
	gen     map[string]int64
	pending map[string]context.CancelFunc
}

func newSupersedeTracker() *supersedeTracker {
	return &supersedeTracker{gen: map[string]int64{}, pending: map[string]context.CancelFunc{}}
}

func key(documentURI, method string) string { return documentURI + "\x00" + method }

// Begin registers a new request of the given class for documentURI,
// canceling whatever request was previously the latest for this class —
// per spec.md's "only the most recent such request ... is held; earlier
// ones are completed immediately" — and recording cancel as the new
// latest. It returns the generation token the caller must check before
// delivering its own response, for the case where its own cancel was never
// invoked but it still lost the race some other way.
func (t *supersedeTracker) Begin(documentURI, method string, cancel context.CancelFunc) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(documentURI, method)
	if prev, ok := t.pending[k]; ok && prev != nil {
		prev()
	}
	t.gen[k]++
	t.pending[k] = cancel
	return t.gen[k]
}

// Done clears the pending cancel func for (document, method), but only if
// gen is still the latest generation recorded — a stale caller finishing
// late must not clobber whatever newer request has since taken its place.
func (t *supersedeTracker) Done(documentURI, method string, gen int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(documentURI, method)
	if t.gen[k] == gen {
		delete(t.pending, k)
	}
}

// Current reports whether gen is still the latest generation for this
// (document, method) — false means a newer request has already superseded
// it.
func (t *supersedeTracker) Current(documentURI, method string, gen int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen[key(documentURI, method)] == gen
}
