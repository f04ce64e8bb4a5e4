// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphutil

import (
	"fmt"

	ybgraph "github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/lfkdsk/redex/analysis/ir"
	"github.com/lfkdsk/redex/internal/funcutil"
)

// Condensation is the strongly-connected-component condensation of a call graph: one node per SCC, one edge per
// pair of components with at least one call between them. The condensation is acyclic, which makes it orderable;
// it implements Gonum's graph.Directed so that its algorithms apply.
type Condensation struct {
	g MGraph

	// comps maps component IDs to the call-graph node IDs of their members
	comps map[int64][]int64

	// compOf maps call-graph node IDs to the ID of their component
	compOf map[int64]int64

	// out and in are the inter-component adjacency maps, self-edges excluded
	out map[int64]map[int64]bool
	in  map[int64]map[int64]bool
}

// CompNode is a node of a condensation, one strongly connected component of the underlying call graph.
type CompNode struct {
	id int64

	// Members are the call-graph nodes of the component.
	Members []MNode
}

// ID returns the id of the component.
func (n CompNode) ID() int64 {
	return n.id
}

// Condense computes the condensation of the call graph. The strongly connected components are computed with
// Tarjan's algorithm as implemented by the yourbasic graph library.
func Condense(g MGraph) *Condensation {
	components := ybgraph.StrongComponents(g)
	c := &Condensation{
		g:      g,
		comps:  make(map[int64][]int64, len(components)),
		compOf: make(map[int64]int64, g.Order()),
		out:    make(map[int64]map[int64]bool, len(components)),
		in:     make(map[int64]map[int64]bool, len(components)),
	}
	for i, component := range components {
		cid := int64(i)
		for _, v := range component {
			c.comps[cid] = append(c.comps[cid], int64(v))
			c.compOf[int64(v)] = cid
		}
		c.out[cid] = map[int64]bool{}
		c.in[cid] = map[int64]bool{}
	}
	for v, succs := range g.Edges {
		for w := range succs {
			cv, cw := c.compOf[v], c.compOf[w]
			if cv != cw {
				c.out[cv][cw] = true
				c.in[cw][cv] = true
			}
		}
	}
	return c
}

// BottomUpOrder returns the methods of the program grouped by strongly connected component, ordered so that a
// component appears after every component it calls into. This is the processing order of summary-based analyses:
// when a component is reached, the summaries of all its callees outside the component are available.
func (c *Condensation) BottomUpOrder() ([][]*ir.Method, error) {
	sorted, err := topo.Sort(c)
	if err != nil {
		// The condensation is acyclic by construction, so this means the graph was built incorrectly.
		return nil, fmt.Errorf("could not order call graph components: %w", err)
	}
	order := make([][]*ir.Method, 0, len(sorted))
	for _, comp := range sorted {
		methods := funcutil.Map(c.comps[comp.ID()], func(v int64) *ir.Method { return c.g.IDMap[v].Method })
		order = append(order, methods)
	}
	// topo.Sort puts callers before their callees; bottom-up is the reverse.
	funcutil.Reverse(order)
	return order, nil
}

// *************** Directed graph interface implementation **********************

// Node returns the component with the given id (nil if none exists).
func (c *Condensation) Node(id int64) graph.Node {
	if _, ok := c.comps[id]; !ok {
		return nil
	}
	return c.compNode(id)
}

// Nodes returns an iterator over all components.
func (c *Condensation) Nodes() graph.Nodes {
	nodes := make(map[int64]graph.Node, len(c.comps))
	ids := make([]int64, 0, len(c.comps))
	for id := range c.comps {
		nodes[id] = c.compNode(id)
		ids = append(ids, id)
	}
	return NewNodeSet(nodes, ids)
}

// From returns an iterator over the components reachable by a direct edge from id.
func (c *Condensation) From(id int64) graph.Nodes {
	return c.neighborSet(c.out[id])
}

// To returns an iterator over the components with a direct edge to id.
func (c *Condensation) To(id int64) graph.Nodes {
	return c.neighborSet(c.in[id])
}

// HasEdgeBetween reports whether an edge exists between the two components, ignoring direction.
func (c *Condensation) HasEdgeBetween(xid, yid int64) bool {
	return c.out[xid][yid] || c.out[yid][xid]
}

// HasEdgeFromTo reports whether an edge exists from uid to vid.
func (c *Condensation) HasEdgeFromTo(uid, vid int64) bool {
	return c.out[uid][vid]
}

// Edge returns the edge between the two components (nil if none exists).
func (c *Condensation) Edge(uid, vid int64) graph.Edge {
	if c.out[uid][vid] {
		return CEdge{from: c.compNode(uid), to: c.compNode(vid)}
	}
	return nil
}

func (c *Condensation) compNode(id int64) CompNode {
	members := funcutil.Map(c.comps[id], func(v int64) MNode { return c.g.IDMap[v] })
	return CompNode{id: id, Members: members}
}

func (c *Condensation) neighborSet(adj map[int64]bool) graph.Nodes {
	nodes := make(map[int64]graph.Node, len(adj))
	ids := make([]int64, 0, len(adj))
	for id := range adj {
		nodes[id] = c.compNode(id)
		ids = append(ids, id)
	}
	return NewNodeSet(nodes, ids)
}

// *************** Edge implementation **********************

// CEdge implements the graph.Edge interface.
type CEdge struct {
	from CompNode
	to   CompNode
}

// From returns the origin of the edge.
func (e CEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge.
func (e CEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge.
func (e CEdge) ReversedEdge() graph.Edge {
	return CEdge{from: e.to, to: e.from}
}
