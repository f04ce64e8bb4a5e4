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

package ir

import "github.com/yourbasic/graph"

// BasicBlock is a maximal sequence of instructions with a single entry and a single exit point.
type BasicBlock struct {
	// ID is the index of the block, unique within its CFG.
	ID int

	// Instrs is the ordered list of instructions of the block.
	Instrs []*Instruction

	// Preds and Succs are the control-flow predecessors and successors of the block.
	Preds []*BasicBlock
	Succs []*BasicBlock
}

// NewBlock returns a new block with the given id and instructions, not yet connected to any other block.
func NewBlock(id int, instrs ...*Instruction) *BasicBlock {
	return &BasicBlock{ID: id, Instrs: instrs}
}

// Connect adds a control-flow edge from one block to another, updating both adjacency lists.
func Connect(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// CFG is the control-flow graph of one method body. The graph is built by an external component; analyses only
// read it.
type CFG struct {
	// Entry is the block control flow starts in.
	Entry *BasicBlock

	// Blocks lists all blocks of the graph, including Entry.
	Blocks []*BasicBlock

	// Exit is the unique exit block. It is nil until ComputeExitBlock has been called on graphs with zero or
	// several return blocks.
	Exit *BasicBlock
}

// NewCFG returns a new graph with the given entry block and any additional blocks. Edges are expected to have been
// installed with Connect beforehand or to be added afterwards.
func NewCFG(entry *BasicBlock, rest ...*BasicBlock) *CFG {
	blocks := append([]*BasicBlock{entry}, rest...)
	return &CFG{Entry: entry, Blocks: blocks}
}

// ComputeExitBlock establishes the unique exit block of the graph. A block is an exit point when control cannot
// leave its strongly connected component: blocks without successors, but also the blocks of loops that never
// terminate. Treating such loops as exit points keeps their effects visible in the state at the exit, which
// summary extraction reads. When there are several exit points, a synthetic empty block is appended and wired as
// their common successor, so that forward analyses have a single program point at which all paths have been joined.
func (c *CFG) ComputeExitBlock() {
	if c.Exit != nil {
		return
	}
	exits := c.exitPoints()
	if len(exits) == 1 {
		c.Exit = exits[0]
		return
	}
	maxID := 0
	for _, b := range c.Blocks {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	ghost := NewBlock(maxID + 1)
	for _, b := range exits {
		Connect(b, ghost)
	}
	c.Blocks = append(c.Blocks, ghost)
	c.Exit = ghost
}

// exitPoints returns the blocks control cannot flow out of: the members of the strongly connected components
// without an edge leaving the component. The strongly connected components are computed with Tarjan's algorithm as
// implemented by the yourbasic graph library.
func (c *CFG) exitPoints() []*BasicBlock {
	idx := make(map[*BasicBlock]int, len(c.Blocks))
	for i, b := range c.Blocks {
		idx[b] = i
	}
	var exits []*BasicBlock
	for _, component := range graph.StrongComponents(blockGraph{blocks: c.Blocks, idx: idx}) {
		members := make(map[int]bool, len(component))
		for _, v := range component {
			members[v] = true
		}
		terminal := true
		for _, v := range component {
			for _, s := range c.Blocks[v].Succs {
				if !members[idx[s]] {
					terminal = false
					break
				}
			}
			if !terminal {
				break
			}
		}
		if terminal {
			for _, v := range component {
				exits = append(exits, c.Blocks[v])
			}
		}
	}
	return exits
}

// blockGraph adapts a CFG to the graph.Iterator interface of the yourbasic graph library, over block indices.
type blockGraph struct {
	blocks []*BasicBlock
	idx    map[*BasicBlock]int
}

// Order returns the number of blocks, implementing the graph.Iterator interface.
func (g blockGraph) Order() int {
	return len(g.blocks)
}

// Visit calls do for every successor of the block at index v, implementing the graph.Iterator interface.
func (g blockGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, s := range g.blocks[v].Succs {
		if do(g.idx[s], 1) {
			return true
		}
	}
	return false
}

// ReversePostorder returns the blocks reachable from the entry in reverse postorder of a depth-first traversal.
// This is the canonical iteration order for forward dataflow analyses.
func (c *CFG) ReversePostorder() []*BasicBlock {
	if c.Entry == nil {
		return nil
	}
	type frame struct {
		block *BasicBlock
		next  int
	}
	seen := map[*BasicBlock]bool{c.Entry: true}
	stack := []frame{{block: c.Entry}}
	var post []*BasicBlock
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.block.Succs) {
			s := top.block.Succs[top.next]
			top.next++
			if !seen[s] {
				seen[s] = true
				stack = append(stack, frame{block: s})
			}
			continue
		}
		post = append(post, top.block)
		stack = stack[:len(stack)-1]
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// ForEachInstruction calls f on every instruction of the graph, in block order.
func (c *CFG) ForEachInstruction(f func(block *BasicBlock, instr *Instruction)) {
	for _, b := range c.Blocks {
		for _, i := range b.Instrs {
			f(b, i)
		}
	}
}
