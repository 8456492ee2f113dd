package brep

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// faceInfo is one B-rep face: every coincident live polygon across cells.
type faceInfo struct {
	key    string
	verts  []int
	normal r3.Vec
}

// topology is the indexed view of a body at one generation.
type topology struct {
	vertices []r3.Vec
	vindex   map[vkey]int
	faces    []faceInfo
	edges    [][2]int
}

func (t *topology) vertex(v r3.Vec) int {
	k := keyOf(v)
	if i, ok := t.vindex[k]; ok {
		return i
	}
	t.vindex[k] = len(t.vertices)
	t.vertices = append(t.vertices, v)
	return len(t.vertices) - 1
}

// buildTopology indexes the live polygons of cells in cell order. When
// retained is non-nil its dangling vertices and edges are appended after
// the live ones.
func buildTopology(cells []*cell, retained *leftovers) *topology {
	t := &topology{vindex: map[vkey]int{}}
	faceSeen := map[string]bool{}
	edgeSeen := map[[2]int]bool{}
	addEdge := func(a, b int) {
		if a > b {
			a, b = b, a
		}
		e := [2]int{a, b}
		if a != b && !edgeSeen[e] {
			edgeSeen[e] = true
			t.edges = append(t.edges, e)
		}
	}

	for _, c := range cells {
		for _, p := range c.polys {
			if p.removed {
				continue
			}
			key := p.key()
			ids := make([]int, len(p.verts))
			for i, v := range p.verts {
				ids[i] = t.vertex(v)
			}
			for i := range ids {
				addEdge(ids[i], ids[(i+1)%len(ids)])
			}
			if faceSeen[key] {
				continue
			}
			faceSeen[key] = true
			t.faces = append(t.faces, faceInfo{key: key, verts: ids, normal: p.normal})
		}
	}

	if retained != nil {
		for _, k := range retained.sortedVertices() {
			t.vertex(retained.vertices[k])
		}
		for _, e := range retained.sortedEdges() {
			addEdge(t.vindex[e[0]], t.vindex[e[1]])
		}
	}
	return t
}

// leftovers holds vertices and edges of removed faces and cells until
// RemoveRedundantEntities sweeps them.
type leftovers struct {
	vertices map[vkey]r3.Vec
	edges    map[[2]vkey]bool
}

func newLeftovers() *leftovers {
	return &leftovers{vertices: map[vkey]r3.Vec{}, edges: map[[2]vkey]bool{}}
}

func (l *leftovers) addPolygon(p polygon) {
	for i, v := range p.verts {
		w := p.verts[(i+1)%len(p.verts)]
		a, b := keyOf(v), keyOf(w)
		l.vertices[a] = v
		if b.less(a) {
			a, b = b, a
		}
		l.edges[[2]vkey{a, b}] = true
	}
}

func (l *leftovers) empty() bool {
	return len(l.vertices) == 0 && len(l.edges) == 0
}

func (l *leftovers) sortedVertices() []vkey {
	keys := make([]vkey, 0, len(l.vertices))
	for k := range l.vertices {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

func (l *leftovers) sortedEdges() [][2]vkey {
	edges := make([][2]vkey, 0, len(l.edges))
	for e := range l.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0].less(edges[j][0])
		}
		return edges[i][1].less(edges[j][1])
	})
	return edges
}
