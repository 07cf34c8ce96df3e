package injection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MaxDepth bounds injection recursion, per the injection layer engine's
// hard depth limit.
const MaxDepth = 10

// RegionID is a stable `{language}-{index}` identifier for a region,
// assigned deterministically by document traversal order and preserved
// across edits whenever the region still exists.
type RegionID string

func formatID(language string, index int) RegionID {
	return RegionID(fmt.Sprintf("%s-%d", language, index))
}

// Assigned pairs a resolved Region with its stable ID.
type Assigned struct {
	Region
	ID RegionID
}

// AssignIDs numbers regions 0, 1, 2, … within each language, in host
// document order. Called on a document's first resolution pass, with no
// prior state to reconcile against.
func AssignIDs(regions []Region) []Assigned {
	counts := map[string]int{}
	out := make([]Assigned, len(regions))
	for i, r := range regions {
		idx := counts[r.Language]
		counts[r.Language] = idx + 1
		out[i] = Assigned{Region: r, ID: formatID(r.Language, idx)}
	}
	return out
}

// Registry tracks previously assigned region IDs for one document so that
// re-resolution after an edit can preserve IDs for surviving regions.
// Guarded by a short-critical-section mutex per the concurrency model:
// callers must not hold the lock across parsing or I/O.
//
// buildInjections walks a document's layer tree and calls Reconcile once
// per layer with injections of its own (the host layer, then separately
// for each nested layer that itself injects further languages), so state
// is kept per originating scope rather than one document-wide list: a
// single shared previous list would have each layer's commit clobber the
// one before it, losing ID stability for every layer but the last one
// processed.
type Registry struct {
	mu       sync.Mutex
	previous map[string][]Assigned
	// virtualOpened tracks which region IDs have an open virtual document
	// with a downstream bridge, so a disappearing region can trigger a
	// didClose.
	virtualOpened map[RegionID]bool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{previous: map[string][]Assigned{}, virtualOpened: map[RegionID]bool{}}
}

// Reconcile matches newly resolved regions against the registry's previous
// assignment for scope and returns a freshly ID-assigned list, preserving
// IDs for regions that are identity-matched to a previous one. It also
// returns the IDs of regions that disappeared (for didClose) relative to
// the prior call for this scope. Matching is by (language, nearest
// surviving starting byte), tolerant to small shifts, falling back to
// positional matching within the language.
//
// scope identifies the originating layer (empty string for the host
// layer, a parent region's own RegionID for a nested layer's injections),
// so that sibling layers injecting the same language don't interfere with
// each other's ID assignment.
func (r *Registry) Reconcile(scope string, regions []Region) (assigned []Assigned, disappeared []RegionID) {
	r.mu.Lock()
	prev, seen := r.previous[scope]
	r.mu.Unlock()

	if !seen {
		assigned = AssignIDs(regions)
		r.commit(scope, assigned)
		return assigned, nil
	}

	byLang := map[string][]Assigned{}
	for _, p := range prev {
		byLang[p.Language] = append(byLang[p.Language], p)
	}
	for lang := range byLang {
		sort.Slice(byLang[lang], func(i, j int) bool {
			return byLang[lang][i].Start < byLang[lang][j].Start
		})
	}

	used := map[RegionID]bool{}
	// Seed each language's next-new-index counter past the highest index
	// already assigned to it, so a genuinely new region can never collide
	// with a preserved one (a second lua region alongside a surviving
	// lua-0 must become lua-1, not lua-0 again).
	counts := map[string]int{}
	for _, p := range prev {
		if idx, ok := parseIndex(p.ID, p.Language); ok && idx+1 > counts[p.Language] {
			counts[p.Language] = idx + 1
		}
	}
	assigned = make([]Assigned, len(regions))

	const tolerance = 64 // bytes; "small shifts"

	for i, reg := range regions {
		candidates := byLang[reg.Language]
		var matchID RegionID
		bestDist := tolerance + 1
		var bestIdx = -1
		for ci, cand := range candidates {
			if used[cand.ID] {
				continue
			}
			dist := reg.Start - cand.Start
			if dist < 0 {
				dist = -dist
			}
			if dist <= bestDist {
				bestDist = dist
				bestIdx = ci
				matchID = cand.ID
			}
		}
		if bestIdx >= 0 && bestDist <= tolerance {
			used[matchID] = true
			assigned[i] = Assigned{Region: reg, ID: matchID}
			continue
		}
		// Positional fallback: the next unused previous region for this
		// language in traversal order.
		fellBack := false
		for _, cand := range candidates {
			if !used[cand.ID] {
				used[cand.ID] = true
				assigned[i] = Assigned{Region: reg, ID: cand.ID}
				fellBack = true
				break
			}
		}
		if fellBack {
			continue
		}
		idx := counts[reg.Language]
		counts[reg.Language] = idx + 1
		assigned[i] = Assigned{Region: reg, ID: formatID(reg.Language, idx)}
	}

	for _, p := range prev {
		if !used[p.ID] {
			disappeared = append(disappeared, p.ID)
		}
	}

	r.commit(scope, assigned)
	return assigned, disappeared
}

// parseIndex parses the trailing index out of a RegionID minted by
// formatID for language, e.g. parseIndex("lua-1", "lua") -> (1, true).
func parseIndex(id RegionID, language string) (int, bool) {
	suffix := strings.TrimPrefix(string(id), language+"-")
	if suffix == string(id) {
		return 0, false
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return idx, true
}

func (r *Registry) commit(scope string, assigned []Assigned) {
	r.mu.Lock()
	r.previous[scope] = assigned
	for _, id := range r.goneLocked() {
		delete(r.virtualOpened, id)
	}
	r.mu.Unlock()
}

// goneLocked computes which virtualOpened IDs are no longer alive in any
// scope's current assignment. Must run with every scope's previous list
// already up to date, since a region's scope is its own, not its parent's.
func (r *Registry) goneLocked() []RegionID {
	alive := map[RegionID]bool{}
	for _, list := range r.previous {
		for _, a := range list {
			alive[a.ID] = true
		}
	}
	var gone []RegionID
	for id := range r.virtualOpened {
		if !alive[id] {
			gone = append(gone, id)
		}
	}
	return gone
}

// MarkVirtualOpened records that a bridge has a virtual document open for
// this region, so its disappearance later is known to need a didClose.
func (r *Registry) MarkVirtualOpened(id RegionID) {
	r.mu.Lock()
	r.virtualOpened[id] = true
	r.mu.Unlock()
}
