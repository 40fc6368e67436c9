package inventory

import (
	"sort"
	"strings"

	"github.com/signalsfoundry/sdh-provisioner/core"
)

// FindRoutesThroughSpecialRelationships returns every simple path from a to
// b that only follows relationships called name. Each path lists the
// objects in order, endpoints included. Paths longer than maxHops
// intermediate links are skipped; maxHops <= 0 means DefaultMaxRouteHops.
// Results are sorted by length, then by the keys along the path.
func (tx *Txn) FindRoutesThroughSpecialRelationships(a, b core.ObjectRef, name string, maxHops int) ([][]core.ObjectRef, error) {
	start, err := tx.Resolve(a)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Resolve(b); err != nil {
		return nil, err
	}
	if maxHops <= 0 {
		maxHops = DefaultMaxRouteHops
	}
	// Equipment and links alternate, so k links take 2k edges.
	maxEdges := 2 * maxHops

	var (
		routes  [][]core.ObjectRef
		path    = []core.ObjectRef{start}
		visited = map[string]bool{start.Key(): true}
	)

	var walk func(cur core.ObjectRef)
	walk = func(cur core.ObjectRef) {
		if len(path)-1 >= maxEdges {
			return
		}
		for _, next := range tx.neighbours(cur, name) {
			if visited[next.Key()] {
				continue
			}
			path = append(path, next)
			if next.Same(b) {
				routes = append(routes, append([]core.ObjectRef(nil), path...))
			} else {
				visited[next.Key()] = true
				walk(next)
				delete(visited, next.Key())
			}
			path = path[:len(path)-1]
		}
	}
	if !start.Same(b) {
		walk(start)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		if len(routes[i]) != len(routes[j]) {
			return len(routes[i]) < len(routes[j])
		}
		return routeKey(routes[i]) < routeKey(routes[j])
	})
	return routes, nil
}

// neighbours returns the objects related to ref through name, sorted by key
// so traversal order does not depend on map iteration.
func (tx *Txn) neighbours(ref core.ObjectRef, name string) []core.ObjectRef {
	var res []core.ObjectRef
	for id := range tx.s.byObject[ref.Key()] {
		rel := tx.s.relationships[id]
		if rel.Name != name {
			continue
		}
		res = append(res, tx.s.objects[rel.Other(ref).Key()].Ref())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key() < res[j].Key() })
	return res
}

func routeKey(route []core.ObjectRef) string {
	keys := make([]string, len(route))
	for i, r := range route {
		keys[i] = r.Key()
	}
	return strings.Join(keys, "|")
}
