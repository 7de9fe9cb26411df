// Package mountgraph builds the graph of apps and routers mounted into each
// other, and resolves every endpoint's local path into the full paths it is
// reachable at.
//
// Nodes live in an arena and are addressed by NodeID; edges refer to nodes by
// index, so a router mounted under several parents (a diamond mount) is simply
// a node with several incoming edges.
package mountgraph

import (
	"fmt"
	"strings"
)

// NodeID indexes Graph.Nodes.
type NodeID int

// NodeKey identifies a node. The same local name (e.g. "router") is common
// across repositories, so lookups always use the repo as part of the key.
type NodeKey struct {
	Repo string
	Name string
}

func (k NodeKey) String() string {
	return k.Repo + ":" + k.Name
}

// Role is a node's position in its repository's mount graph.
type Role string

const (
	RoleRoot      Role = "root"      // never mounted; owns endpoints or mounts children
	RoleMounted   Role = "mounted"   // appears as the child of at least one mount
	RoleUnmounted Role = "unmounted" // owns endpoints but is neither mounted nor a parent
	RoleDetached  Role = "detached"  // none of the above
)

// Node is an app or router instance.
type Node struct {
	ID   NodeID
	Key  NodeKey
	Role Role
}

// MountEdge mounts Child under Parent at Prefix.
type MountEdge struct {
	Parent NodeID
	Child  NodeID
	Prefix string
	Repo   string
}

// Endpoint is a route registered directly on a node.
type Endpoint struct {
	Owner   NodeID
	Method  string
	RawPath string
	Handler string
	Repo    string
	Seq     int
}

// Graph is the merged mount graph of every repository that built cleanly.
// It is read-only once Build returns.
type Graph struct {
	Nodes     []Node
	Edges     []MountEdge
	Endpoints []Endpoint

	index    map[NodeKey]NodeID
	incoming [][]int // node -> indexes into Edges where node is the child
	outgoing [][]int // node -> indexes into Edges where node is the parent
}

func newGraph() *Graph {
	return &Graph{index: make(map[NodeKey]NodeID)}
}

// Lookup returns the node with the given key.
func (g *Graph) Lookup(repo, name string) (*Node, bool) {
	id, ok := g.index[NodeKey{Repo: repo, Name: name}]
	if !ok {
		return nil, false
	}
	return &g.Nodes[id], true
}

// Parents returns the edges mounting n.
func (g *Graph) Parents(n NodeID) []MountEdge {
	out := make([]MountEdge, 0, len(g.incoming[n]))
	for _, ei := range g.incoming[n] {
		out = append(out, g.Edges[ei])
	}
	return out
}

// Children returns the edges mounted on n.
func (g *Graph) Children(n NodeID) []MountEdge {
	out := make([]MountEdge, 0, len(g.outgoing[n]))
	for _, ei := range g.outgoing[n] {
		out = append(out, g.Edges[ei])
	}
	return out
}

// NodesWithRole returns the nodes with role r, in ID order.
func (g *Graph) NodesWithRole(r Role) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Role == r {
			out = append(out, n)
		}
	}
	return out
}

// RepoHasMounts reports whether repo contributed at least one mount edge.
func (g *Graph) RepoHasMounts(repo string) bool {
	for _, e := range g.Edges {
		if e.Repo == repo {
			return true
		}
	}
	return false
}

// EndpointCount returns how many endpoints n owns.
func (g *Graph) EndpointCount(n NodeID) int {
	count := 0
	for _, ep := range g.Endpoints {
		if ep.Owner == n {
			count++
		}
	}
	return count
}

func (g *Graph) node(key NodeKey) NodeID {
	if id, ok := g.index[key]; ok {
		return id
	}
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{ID: id, Key: key, Role: RoleDetached})
	g.index[key] = id
	g.incoming = append(g.incoming, nil)
	g.outgoing = append(g.outgoing, nil)
	return id
}

func (g *Graph) addEdge(parent, child NodeID, prefix, repo string) {
	idx := len(g.Edges)
	g.Edges = append(g.Edges, MountEdge{Parent: parent, Child: child, Prefix: prefix, Repo: repo})
	g.outgoing[parent] = append(g.outgoing[parent], idx)
	g.incoming[child] = append(g.incoming[child], idx)
}

// merge appends src into g, remapping node IDs.
func (g *Graph) merge(src *Graph) {
	remap := make([]NodeID, len(src.Nodes))
	for i, n := range src.Nodes {
		id := g.node(n.Key)
		g.Nodes[id].Role = n.Role
		remap[i] = id
	}
	for _, e := range src.Edges {
		g.addEdge(remap[e.Parent], remap[e.Child], e.Prefix, e.Repo)
	}
	for _, ep := range src.Endpoints {
		ep.Owner = remap[ep.Owner]
		g.Endpoints = append(g.Endpoints, ep)
	}
}

// ErrorKind classifies a StructuralError.
type ErrorKind string

const (
	ErrCycle       ErrorKind = "cycle"
	ErrUnknownNode ErrorKind = "unknown_node"
)

// StructuralError makes one repository's mount graph unusable. It never
// affects other repositories.
type StructuralError struct {
	Kind   ErrorKind
	Repo   string
	NodeA  string
	NodeB  string
	Detail string
}

func (e *StructuralError) Error() string {
	switch e.Kind {
	case ErrCycle:
		return fmt.Sprintf("repo %s: mount cycle between %q and %q", e.Repo, e.NodeA, e.NodeB)
	case ErrUnknownNode:
		return fmt.Sprintf("repo %s: mount references unknown node: %s", e.Repo, e.Detail)
	default:
		return fmt.Sprintf("repo %s: structural error: %s", e.Repo, e.Detail)
	}
}

// Nodes returns the node names the error refers to.
func (e *StructuralError) Nodes() []string {
	var out []string
	for _, n := range []string{e.NodeA, e.NodeB} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// JoinPath concatenates mount prefixes and a local path: segments are joined
// with "/", repeated slashes collapse, and a trailing slash is dropped unless
// the result is "/".
func JoinPath(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(p)
	}
	return cleanSlashes(b.String())
}

func cleanSlashes(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 1)
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	out := b.String()
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}
