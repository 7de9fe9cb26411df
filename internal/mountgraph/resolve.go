package mountgraph

// ResolvedEndpoint is an endpoint at one of the full paths it is reachable at.
// Source indexes Graph.Endpoints; Seq is the resolution order, which doubles
// as the registration order used for tie-breaking.
type ResolvedEndpoint struct {
	Method    string
	FullPath  string
	Repo      string
	Owner     NodeID
	OwnerName string
	Handler   string
	Source    int
	Seq       int
	Consumed  bool
}

// Resolve expands every endpoint into one ResolvedEndpoint per distinct mount
// chain from its owner to a root. Endpoints whose owner has no parents
// resolve once, at their local path. The result depends only on the graph, so
// calling Resolve twice yields identical output.
func (g *Graph) Resolve() []ResolvedEndpoint {
	var out []ResolvedEndpoint
	for i, ep := range g.Endpoints {
		seen := make(map[string]bool)
		for _, chain := range g.prefixChains(ep.Owner) {
			parts := append(chain, ep.RawPath)
			full := JoinPath(parts...)
			if seen[full] {
				continue
			}
			seen[full] = true
			out = append(out, ResolvedEndpoint{
				Method:    ep.Method,
				FullPath:  full,
				Repo:      ep.Repo,
				Owner:     ep.Owner,
				OwnerName: g.Nodes[ep.Owner].Key.Name,
				Handler:   ep.Handler,
				Source:    i,
				Seq:       len(out),
			})
		}
	}
	return out
}

// FullPaths returns every full path a node's local root "/" is reachable at.
func (g *Graph) FullPaths(n NodeID) []string {
	var out []string
	seen := make(map[string]bool)
	for _, chain := range g.prefixChains(n) {
		p := JoinPath(chain...)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// prefixChains returns the mount prefixes of every ancestor chain from n up to
// a node without parents, each chain ordered parent -> child. A node without
// parents yields a single empty chain. The on-path set stops the walk from
// revisiting a node within its own ancestry.
func (g *Graph) prefixChains(n NodeID) [][]string {
	var chains [][]string
	onPath := make([]bool, len(g.Nodes))

	var walk func(cur NodeID, acc []string)
	walk = func(cur NodeID, acc []string) {
		in := g.incoming[cur]
		if len(in) == 0 {
			chain := make([]string, len(acc))
			for i, p := range acc {
				chain[len(acc)-1-i] = p
			}
			chains = append(chains, chain)
			return
		}
		onPath[cur] = true
		for _, ei := range in {
			e := g.Edges[ei]
			if onPath[e.Parent] {
				continue
			}
			next := make([]string, len(acc), len(acc)+1)
			copy(next, acc)
			walk(e.Parent, append(next, e.Prefix))
		}
		onPath[cur] = false
	}
	walk(n, nil)

	if len(chains) == 0 {
		chains = append(chains, nil)
	}
	return chains
}
