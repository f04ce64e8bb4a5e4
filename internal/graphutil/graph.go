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

// Package graphutil adapts the method call graph of a program to existing graph libraries, so that analysis
// drivers can reuse their strongly-connected-component and topological-ordering algorithms.
package graphutil

import (
	"gonum.org/v1/gonum/graph"

	"github.com/lfkdsk/redex/analysis/ir"
)

// MGraph is an abstraction over the call graph of a program: one node per method, one edge per caller/callee pair
// resolved inside the program. Node IDs are dense (0..Order()-1), assigned over the sorted method identities so
// that the graph is deterministic. MGraph implements the yourbasic graph.Iterator interface; its SCC condensation
// (see Condense) implements Gonum's graph.Directed.
type MGraph struct {
	// The order of the graph
	order int

	// IDMap maps node IDs to their method
	IDMap map[int64]MNode

	// Keys are all the node IDs, in ascending order
	Keys []int64

	// Edges is an adjacency representation: Edges[x][y] means method x calls method y
	Edges map[int64]map[int64]bool
}

// MNode is a node of the call graph, wrapping one method of the program.
type MNode struct {
	id     int64
	Method *ir.Method
}

// ID returns the id of the node.
func (n MNode) ID() int64 {
	return n.id
}

func (n MNode) String() string {
	if n.Method == nil {
		return ""
	}
	return n.Method.ID
}

// NewMethodGraph builds the call graph of the program.
func NewMethodGraph(p *ir.Program) MGraph {
	names := p.MethodIDs()
	byName := make(map[string]int64, len(names))
	idmap := make(map[int64]MNode, len(names))
	keys := make([]int64, len(names))
	for i, name := range names {
		byName[name] = int64(i)
		idmap[int64(i)] = MNode{id: int64(i), Method: p.Methods[name]}
		keys[i] = int64(i)
	}

	edges := make(map[int64]map[int64]bool, len(names))
	for i, name := range names {
		edges[int64(i)] = map[int64]bool{}
		for _, callee := range p.Callees(p.Methods[name]) {
			edges[int64(i)][byName[callee]] = true
		}
	}

	return MGraph{
		order: len(names),
		IDMap: idmap,
		Keys:  keys,
		Edges: edges,
	}
}

// Order returns the number of nodes of the graph, implementing the graph.Iterator interface.
func (g MGraph) Order() int {
	return g.order
}

// Visit calls do for every out-neighbor of v, implementing the graph.Iterator interface.
func (g MGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := g.IDMap[int64(v)]; !ok {
		return false
	}
	for w := range g.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Nodes implementation **********************

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes. The iterator starts before the
// first node, per Gonum's iteration protocol.
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]graph.Node

	// ids is the set of node ids in the iterator
	// invariant: len(ids) = len(nodes)
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: -1 <= cur < len(nodes)
	cur int
}

// NewNodeSet returns an iterator over the given nodes, positioned before the first one.
func NewNodeSet(nodes map[int64]graph.Node, ids []int64) *NodeSet {
	return &NodeSet{nodes: nodes, ids: ids, cur: -1}
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the length of the node set.
func (ns *NodeSet) Len() int {
	return len(ns.ids)
}

// Reset moves the iterator back before the first node.
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node returns the current node in the set.
func (ns *NodeSet) Node() graph.Node {
	return ns.nodes[ns.ids[ns.cur]]
}
