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

package localpointers

import "github.com/lfkdsk/redex/analysis/ir"

// InvokeToSummaryMap maps invoke instructions to the escape summary of their resolved callee. Entries are optional:
// a call site without an entry is treated as a call to an unknown method, for which the most conservative transfer
// rule applies.
type InvokeToSummaryMap map[*ir.Instruction]EscapeSummary

// FixpointIterator runs the local-pointers analysis over the CFG of one method: a forward monotone dataflow
// analysis computing an Environment at every block boundary. Termination is guaranteed because the per-method
// universe of abstract pointers is finite, which bounds the height of the lattice.
type FixpointIterator struct {
	cfg       *ir.CFG
	table     *PointerTable
	summaries InvokeToSummaryMap

	entryStates map[*ir.BasicBlock]*Environment
	exitStates  map[*ir.BasicBlock]*Environment

	// returned joins the pointer sets flowing into every reachable return site, recorded as the iteration runs.
	returned *PointerSet
}

// NewFixpointIterator returns an iterator for the given graph and callee summaries. The graph must have a computed
// exit block; handing over a graph without one is a programmer error and panics.
func NewFixpointIterator(cfg *ir.CFG, summaries InvokeToSummaryMap) *FixpointIterator {
	if cfg == nil || cfg.Entry == nil {
		panic("localpointers: fixpoint iterator requires a non-empty CFG")
	}
	if cfg.Exit == nil {
		panic("localpointers: fixpoint iterator requires a CFG with a computed exit block")
	}
	f := &FixpointIterator{
		cfg:         cfg,
		table:       NewPointerTable(),
		summaries:   summaries,
		entryStates: map[*ir.BasicBlock]*Environment{},
		exitStates:  map[*ir.BasicBlock]*Environment{},
	}
	// Assign abstract pointer IDs to every origin up front so that IDs do not depend on iteration order.
	cfg.ForEachInstruction(func(_ *ir.BasicBlock, instr *ir.Instruction) {
		switch instr.Op {
		case ir.OpLoadParam, ir.OpNewInstance, ir.OpNewArray:
			f.table.Pointer(instr)
		}
	})
	return f
}

// Table returns the pointer table mapping abstract pointers to their origin instructions.
func (f *FixpointIterator) Table() *PointerTable {
	return f.table
}

// Run iterates the transfer functions over the graph until the per-block environments converge, starting from the
// initial environment at the entry block.
func (f *FixpointIterator) Run(initial *Environment) {
	f.returned = BottomSet()
	rpo := f.cfg.ReversePostorder()
	worklist := make([]*ir.BasicBlock, len(rpo))
	copy(worklist, rpo)
	queued := make(map[*ir.BasicBlock]bool, len(rpo))
	for _, b := range rpo {
		queued[b] = true
	}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		queued[b] = false

		in := NewEnvironment()
		if b == f.cfg.Entry {
			in.JoinWith(initial)
		}
		for _, pred := range b.Preds {
			if out, ok := f.exitStates[pred]; ok {
				in.JoinWith(out)
			}
		}
		f.entryStates[b] = in

		out := in.Copy()
		for _, instr := range b.Instrs {
			if instr.Op == ir.OpReturn {
				f.returned.unionWith(out.Pointers(instr.Src))
			}
			f.apply(out, instr)
		}
		if prev, ok := f.exitStates[b]; ok && out.Equal(prev) {
			continue
		}
		f.exitStates[b] = out
		for _, succ := range b.Succs {
			if !queued[succ] {
				queued[succ] = true
				worklist = append(worklist, succ)
			}
		}
	}
}

// EntryStateAt returns the environment flowing into block b. Blocks never reached by the iteration are mapped to
// the initial (bottom) environment.
func (f *FixpointIterator) EntryStateAt(b *ir.BasicBlock) *Environment {
	if env, ok := f.entryStates[b]; ok {
		return env
	}
	return NewEnvironment()
}

// ExitStateAt returns the environment flowing out of block b.
func (f *FixpointIterator) ExitStateAt(b *ir.BasicBlock) *Environment {
	if env, ok := f.exitStates[b]; ok {
		return env
	}
	return NewEnvironment()
}

// apply is the per-instruction transfer function. Instructions that do not operate on objects leave the
// environment unchanged; instruction kinds the analysis does not recognize degrade to the unknown-method rule for
// every object operand they touch.
func (f *FixpointIterator) apply(env *Environment, instr *ir.Instruction) {
	switch instr.Op {
	case ir.OpLoadParam:
		env.SetFreshPointer(instr.Dest, f.table.Pointer(instr))
	case ir.OpNewInstance, ir.OpNewArray:
		env.SetFreshPointer(ir.ResultReg, f.table.Pointer(instr))
	case ir.OpMove:
		env.SetPointers(instr.Dest, env.Pointers(instr.Src))
	case ir.OpMoveResult:
		env.SetPointers(instr.Dest, env.Pointers(ir.ResultReg))
	case ir.OpFieldGet:
		// The loaded value has an untracked origin. It is not attributable to any parameter and loading it
		// does not by itself make anything escape.
		env.SetPointers(ir.ResultReg, TopSet())
	case ir.OpFieldPut:
		// The stored value becomes reachable through any future read of the field.
		env.SetRegMayEscape(instr.Src)
	case ir.OpInvoke:
		f.applyInvoke(env, instr)
	case ir.OpNop, ir.OpReturn, ir.OpReturnVoid:
		// Returns do not modify the environment; Run records their contribution to the returned set.
	default:
		escapeAllOperands(env, instr)
	}
}

// applyInvoke transfers a call through the callee's escape summary. Without a summary the callee may retain or
// leak anything passed to it, so every argument escapes and the result is unknown.
func (f *FixpointIterator) applyInvoke(env *Environment, instr *ir.Instruction) {
	summary, ok := f.summaries[instr]
	if !ok {
		escapeAllOperands(env, instr)
		return
	}
	for _, idx := range summary.EscapingParameters.Elements() {
		if idx < len(instr.Args) {
			env.SetRegMayEscape(instr.Args[idx])
		}
	}
	if !instr.HasResult {
		return
	}
	if summary.ReturnedParameters.IsTop() {
		env.SetPointers(ir.ResultReg, TopSet())
		return
	}
	result := BottomSet()
	for _, idx := range summary.ReturnedParameters.Elements() {
		if idx >= len(instr.Args) {
			// A summary referring to a parameter the call site does not pass is malformed; degrade to Top.
			result = TopSet()
			break
		}
		result.unionWith(env.Pointers(instr.Args[idx]))
	}
	env.SetPointers(ir.ResultReg, result)
}

func escapeAllOperands(env *Environment, instr *ir.Instruction) {
	for _, arg := range instr.Args {
		env.SetRegMayEscape(arg)
	}
	if instr.HasResult {
		env.SetPointers(ir.ResultReg, TopSet())
	}
}

// ReturnedPointers returns the join of the pointer sets returned at every reachable return site, recorded while
// the iteration ran. The states only grow between passes over a block, so the contributions of non-final passes
// are absorbed by the final one. Unreachable return sites do not contribute.
func (f *FixpointIterator) ReturnedPointers() *PointerSet {
	if f.returned == nil {
		return BottomSet()
	}
	return f.returned
}
