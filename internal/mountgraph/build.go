package mountgraph

import (
	"log/slog"
	"strings"

	"github.com/DeusData/contractcheck/internal/facts"
)

// Build constructs the mount graph for every repository in the snapshot.
// Repositories whose graph is structurally broken are left out of the returned
// graph and reported as errors; every other repository builds normally.
func Build(snap *facts.Snapshot) (*Graph, []*StructuralError) {
	endpointsByRepo := make(map[string][]facts.HTTPEndpoint)
	for _, ep := range snap.Endpoints() {
		endpointsByRepo[ep.Repo] = append(endpointsByRepo[ep.Repo], ep)
	}
	mountsByRepo := make(map[string][]facts.RouterMount)
	for _, m := range snap.Mounts() {
		mountsByRepo[m.Repo] = append(mountsByRepo[m.Repo], m)
	}

	g := newGraph()
	var errs []*StructuralError
	for _, repo := range snap.RepoNames() {
		rg, err := BuildRepo(repo, endpointsByRepo[repo], mountsByRepo[repo])
		if err != nil {
			slog.Warn("mountgraph.repo.err", "repo", repo, "kind", err.Kind, "err", err)
			errs = append(errs, err)
			continue
		}
		g.merge(rg)
	}
	slog.Debug("mountgraph.built", "nodes", len(g.Nodes), "edges", len(g.Edges), "failed_repos", len(errs))
	return g, errs
}

// BuildRepo builds a single repository's graph in two passes: the first
// collects every node and edge, the second assigns roles once all mounts are
// known. A cycle or a mount naming no node fails the whole repository.
func BuildRepo(repo string, endpoints []facts.HTTPEndpoint, mounts []facts.RouterMount) (*Graph, *StructuralError) {
	g := newGraph()

	// Pass 1: nodes and edges.
	for _, m := range mounts {
		parent, child := strings.TrimSpace(m.Parent), strings.TrimSpace(m.Child)
		if parent == "" || child == "" {
			return nil, &StructuralError{
				Kind:   ErrUnknownNode,
				Repo:   repo,
				NodeA:  parent,
				NodeB:  child,
				Detail: "mount at prefix " + quoteOrEmpty(m.Prefix) + " has an empty parent or child",
			}
		}
		g.addEdge(g.node(NodeKey{repo, parent}), g.node(NodeKey{repo, child}), m.Prefix, repo)
	}
	owns := make(map[NodeID]bool)
	for _, ep := range endpoints {
		owner := g.node(NodeKey{repo, strings.TrimSpace(ep.Owner)})
		owns[owner] = true
		g.Endpoints = append(g.Endpoints, Endpoint{
			Owner:   owner,
			Method:  ep.Method,
			RawPath: ep.Path,
			Handler: ep.Handler,
			Repo:    repo,
			Seq:     ep.Seq,
		})
	}

	if err := g.findCycle(repo); err != nil {
		return nil, err
	}

	// Pass 2: roles.
	for i := range g.Nodes {
		id := NodeID(i)
		isChild := len(g.incoming[id]) > 0
		isParent := len(g.outgoing[id]) > 0
		switch {
		case isChild:
			g.Nodes[i].Role = RoleMounted
		case isParent:
			g.Nodes[i].Role = RoleRoot
		case owns[id]:
			g.Nodes[i].Role = RoleUnmounted
		default:
			g.Nodes[i].Role = RoleDetached
		}
	}
	return g, nil
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return `""`
	}
	return `"` + s + `"`
}

const (
	white = iota // unvisited
	grey         // on the current DFS stack
	black        // fully explored
)

// findCycle runs an iterative depth-first search over mount edges. The colour
// array is the visited-set guard: every node is pushed at most once.
func (g *Graph) findCycle(repo string) *StructuralError {
	color := make([]int, len(g.Nodes))
	type frame struct {
		node NodeID
		next int
	}
	for start := range g.Nodes {
		if color[start] != white {
			continue
		}
		stack := []frame{{node: NodeID(start)}}
		color[start] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			out := g.outgoing[top.node]
			if top.next >= len(out) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			e := g.Edges[out[top.next]]
			top.next++
			switch color[e.Child] {
			case grey:
				return &StructuralError{
					Kind:  ErrCycle,
					Repo:  repo,
					NodeA: g.Nodes[e.Parent].Key.Name,
					NodeB: g.Nodes[e.Child].Key.Name,
				}
			case white:
				color[e.Child] = grey
				stack = append(stack, frame{node: e.Child})
			}
		}
	}
	return nil
}
