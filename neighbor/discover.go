// Package neighbor enumerates the subdomains sharing a ghost boundary
// with the local subdomain — the canonical channel order MPI migration
// uses.
package neighbor

import (
	"sort"

	"github.com/notargets/goparticles/mesh"
)

// Discover returns the deduplicated subdomain IDs of every ghost cell
// touching the local subdomain, sorted ascending. The result is
// deterministic and identical on every rank provided the triangulation's
// ghost-cell enumeration is itself deterministic — true of fakemesh and
// expected of any real host triangulation (spec.md §4.4).
func Discover(tri mesh.Triangulation) []mesh.SubdomainID {
	seen := make(map[mesh.SubdomainID]bool)
	for _, cell := range tri.GhostCells() {
		seen[cell.SubdomainID()] = true
	}
	out := make([]mesh.SubdomainID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
