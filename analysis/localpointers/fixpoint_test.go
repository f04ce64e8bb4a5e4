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

import (
	"testing"

	"github.com/lfkdsk/redex/analysis/ir"
)

// run builds the exit block of the graph, runs the analysis from the initial environment and returns the converged
// iterator.
func run(t *testing.T, cfg *ir.CFG, summaries InvokeToSummaryMap) *FixpointIterator {
	t.Helper()
	cfg.ComputeExitBlock()
	fp := NewFixpointIterator(cfg, summaries)
	fp.Run(NewEnvironment())
	return fp
}

func mustID(t *testing.T, fp *FixpointIterator, instr *ir.Instruction) PointerID {
	t.Helper()
	id, ok := fp.Table().Lookup(instr)
	if !ok {
		t.Fatalf("no abstract pointer rooted at %s", instr)
	}
	return id
}

// A conditionally allocated object that never escapes:
//
//	v0 := param #0
//	if (...) { v1 := new Foo } else { v1 := v0 }
//	return v1
func TestFixpointConditionalAllocationDoesNotEscape(t *testing.T) {
	param := ir.LoadParam(0, 0)
	alloc := ir.NewInstance("LFoo;")

	b0 := ir.NewBlock(0, param)
	b1 := ir.NewBlock(1, alloc, ir.MoveResult(1))
	b2 := ir.NewBlock(2, ir.Move(1, 0))
	b3 := ir.NewBlock(3, ir.Return(1))
	ir.Connect(b0, b1)
	ir.Connect(b0, b2)
	ir.Connect(b1, b3)
	ir.Connect(b2, b3)

	fp := run(t, ir.NewCFG(b0, b1, b2, b3), nil)
	paramID, allocID := mustID(t, fp, param), mustID(t, fp, alloc)

	// Both origins flow into v1 at the return site.
	ret := fp.ReturnedPointers()
	if !ret.Equal(NewPointerSet(paramID, allocID)) {
		t.Errorf("returned pointers = %s, want {%d %d}", ret, paramID, allocID)
	}

	exit := fp.ExitStateAt(fp.cfg.Exit)
	if exit.MayHaveEscaped(paramID) || exit.MayHaveEscaped(allocID) {
		t.Errorf("nothing escapes in this method")
	}

	summary := GetEscapeSummary(fp)
	if got, want := summary.ToSExpr(), "(() (#0))"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

// A parameter escaping through an alias register:
//
//	v0 := param #0
//	v1 := param #1
//	v2 := v1
//	Foo.field = v2
//	return v0
func TestFixpointEscapePropagatesThroughAliases(t *testing.T) {
	param0 := ir.LoadParam(0, 0)
	param1 := ir.LoadParam(1, 1)
	b0 := ir.NewBlock(0,
		param0,
		param1,
		ir.Move(2, 1),
		ir.StaticPut(2, "LFoo;.field:LObj;"),
		ir.Return(0),
	)

	fp := run(t, ir.NewCFG(b0), nil)
	id0, id1 := mustID(t, fp, param0), mustID(t, fp, param1)

	exit := fp.ExitStateAt(fp.cfg.Exit)
	if !exit.MayHaveEscaped(id1) {
		t.Errorf("storing an alias of parameter 1 to a field should mark it escaped")
	}
	if exit.MayHaveEscaped(id0) {
		t.Errorf("parameter 0 is only returned, it should not be marked escaped")
	}

	summary := GetEscapeSummary(fp)
	if got, want := summary.ToSExpr(), "((#1) (#0))"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

// A call to a method with no summary: every argument escapes and the result is untracked.
//
//	v0 := param #0
//	v1 := unknown(v0)
//	return v1
func TestFixpointUnknownCalleeIsConservative(t *testing.T) {
	param := ir.LoadParam(0, 0)
	b0 := ir.NewBlock(0,
		param,
		ir.Invoke("LMystery;.poke:(LObj;)LObj;", 0),
		ir.MoveResult(1),
		ir.Return(1),
	)

	fp := run(t, ir.NewCFG(b0), nil)
	id := mustID(t, fp, param)

	exit := fp.ExitStateAt(fp.cfg.Exit)
	if !exit.MayHaveEscaped(id) {
		t.Errorf("an argument to an unknown method must be considered escaped")
	}
	if !fp.ReturnedPointers().IsTop() {
		t.Errorf("the result of an unknown method must be untracked")
	}

	summary := GetEscapeSummary(fp)
	if got, want := summary.ToSExpr(), "((#0) Top)"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

// A call resolved through a summary: only the parameters the summary names escape, and the result aliases the
// returned arguments.
func TestFixpointInvokeWithSummary(t *testing.T) {
	param0 := ir.LoadParam(0, 0)
	param1 := ir.LoadParam(1, 1)
	call := ir.Invoke("LHolder;.keepSecond:(LObj;LObj;)LObj;", 0, 1)
	b0 := ir.NewBlock(0,
		param0,
		param1,
		call,
		ir.MoveResult(2),
		ir.Return(2),
	)

	// keepSecond stores its second argument and returns its first.
	summaries := InvokeToSummaryMap{call: NewEscapeSummary(NewParamSet(0), 1)}
	fp := run(t, ir.NewCFG(b0), summaries)
	id0, id1 := mustID(t, fp, param0), mustID(t, fp, param1)

	exit := fp.ExitStateAt(fp.cfg.Exit)
	if !exit.MayHaveEscaped(id1) {
		t.Errorf("the callee summary says parameter 1 escapes")
	}
	if exit.MayHaveEscaped(id0) {
		t.Errorf("a returned-only parameter of the callee does not escape at the call site")
	}
	if ret := fp.ReturnedPointers(); !ret.Equal(SinglePointer(id0)) {
		t.Errorf("returned pointers = %s, want {%d}", ret, id0)
	}

	summary := GetEscapeSummary(fp)
	if got, want := summary.ToSExpr(), "((#1) (#0))"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

// A value read from a field has an untracked origin.
//
//	v0 := Foo.field
//	return v0
func TestFixpointFieldGetReturnsUntracked(t *testing.T) {
	b0 := ir.NewBlock(0,
		ir.StaticGet("LFoo;.field:LObj;"),
		ir.MoveResult(0),
		ir.Return(0),
	)

	fp := run(t, ir.NewCFG(b0), nil)
	if !fp.ReturnedPointers().IsTop() {
		t.Errorf("a field read should yield Top")
	}
	summary := GetEscapeSummary(fp)
	if got, want := summary.ToSExpr(), "(() Top)"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

// An unrecognized instruction escapes its operands and produces an untracked result.
func TestFixpointUnknownInstruction(t *testing.T) {
	param := ir.LoadParam(0, 0)
	b0 := ir.NewBlock(0,
		param,
		ir.Unknown(true, 0),
		ir.MoveResult(1),
		ir.Return(1),
	)

	fp := run(t, ir.NewCFG(b0), nil)
	exit := fp.ExitStateAt(fp.cfg.Exit)
	if !exit.MayHaveEscaped(mustID(t, fp, param)) {
		t.Errorf("operands of unrecognized instructions must be considered escaped")
	}
	if !fp.ReturnedPointers().IsTop() {
		t.Errorf("the result of an unrecognized instruction must be untracked")
	}
}

// A loop: iteration must converge and the back edge must not lose information.
//
//	v0 := param #0
//	loop: v1 := v0; if (...) goto loop
//	return v0
func TestFixpointConvergesOnLoops(t *testing.T) {
	param := ir.LoadParam(0, 0)
	b0 := ir.NewBlock(0, param)
	b1 := ir.NewBlock(1, ir.Move(1, 0))
	b2 := ir.NewBlock(2, ir.Return(0))
	ir.Connect(b0, b1)
	ir.Connect(b1, b1)
	ir.Connect(b1, b2)

	fp := run(t, ir.NewCFG(b0, b1, b2), nil)
	id := mustID(t, fp, param)
	if ret := fp.ReturnedPointers(); !ret.Equal(SinglePointer(id)) {
		t.Errorf("returned pointers = %s, want {%d}", ret, id)
	}
	if got, want := GetEscapeSummary(fp).ToSExpr(), "(() (#0))"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

// A parameter stored to a field inside a loop that never terminates must still be reported as escaping: the loop
// blocks are the exit points of such a method.
//
//	v0 := param #0
//	loop: Foo.field = v0; goto loop
func TestFixpointEscapeInInfiniteLoop(t *testing.T) {
	param := ir.LoadParam(0, 0)
	b0 := ir.NewBlock(0, param)
	b1 := ir.NewBlock(1, ir.StaticPut(0, "LFoo;.field:LObj;"))
	ir.Connect(b0, b1)
	ir.Connect(b1, b1)

	fp := run(t, ir.NewCFG(b0, b1), nil)
	exit := fp.ExitStateAt(fp.cfg.Exit)
	if !exit.MayHaveEscaped(mustID(t, fp, param)) {
		t.Errorf("an escape inside a non-terminating loop must be visible at the exit")
	}
	if got, want := GetEscapeSummary(fp).ToSExpr(), "((#0) ())"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

// Same, with a loop spanning several blocks, which requires the synthetic exit block.
func TestFixpointEscapeInInfiniteLoopCycle(t *testing.T) {
	param := ir.LoadParam(0, 0)
	b0 := ir.NewBlock(0, param)
	b1 := ir.NewBlock(1, ir.StaticPut(0, "LFoo;.field:LObj;"))
	b2 := ir.NewBlock(2, ir.Nop())
	ir.Connect(b0, b1)
	ir.Connect(b1, b2)
	ir.Connect(b2, b1)

	fp := run(t, ir.NewCFG(b0, b1, b2), nil)
	if !fp.ExitStateAt(fp.cfg.Exit).MayHaveEscaped(mustID(t, fp, param)) {
		t.Errorf("an escape inside a non-terminating loop must be visible at the exit")
	}
	if got, want := GetEscapeSummary(fp).ToSExpr(), "((#0) ())"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

// Return sites on unreachable blocks do not contribute to the returned set.
func TestFixpointIgnoresUnreachableReturns(t *testing.T) {
	param := ir.LoadParam(0, 0)
	b0 := ir.NewBlock(0, param, ir.ReturnVoid())
	dead := ir.NewBlock(1, ir.StaticGet("LFoo;.field:LObj;"), ir.MoveResult(1), ir.Return(1))

	fp := run(t, ir.NewCFG(b0, dead), nil)
	if !fp.ReturnedPointers().IsBottom() {
		t.Errorf("an unreachable return site must not contribute, got %s", fp.ReturnedPointers())
	}
	if got, want := GetEscapeSummary(fp).ToSExpr(), "(() ())"; got != want {
		t.Errorf("summary = %s, want %s", got, want)
	}
}

func TestFixpointRequiresExitBlock(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("a CFG without a computed exit block should be rejected")
		}
	}()
	NewFixpointIterator(ir.NewCFG(ir.NewBlock(0, ir.ReturnVoid())), nil)
}
