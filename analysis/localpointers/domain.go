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
	"fmt"
	"sort"
	"strings"

	"github.com/lfkdsk/redex/analysis/ir"
	"golang.org/x/tools/container/intsets"
)

// A PointerID identifies an abstract pointer within one method: a symbolic origin rooted either at an allocation
// instruction or at a parameter load. IDs are dense small integers allocated by a PointerTable, so that sets of
// abstract pointers can be represented as sparse integer sets.
type PointerID int

// PointerTable assigns PointerIDs to the origin instructions of one method body. Two distinct origins never alias
// by construction; aliasing only arises when the same ID flows into several registers.
type PointerTable struct {
	origins []*ir.Instruction
	ids     map[*ir.Instruction]PointerID
}

// NewPointerTable returns an empty table.
func NewPointerTable() *PointerTable {
	return &PointerTable{ids: map[*ir.Instruction]PointerID{}}
}

// Pointer returns the ID of the abstract pointer rooted at instr, allocating a fresh one on first use.
func (t *PointerTable) Pointer(instr *ir.Instruction) PointerID {
	if id, ok := t.ids[instr]; ok {
		return id
	}
	id := PointerID(len(t.origins))
	t.origins = append(t.origins, instr)
	t.ids[instr] = id
	return id
}

// Lookup returns the ID assigned to instr, if any.
func (t *PointerTable) Lookup(instr *ir.Instruction) (PointerID, bool) {
	id, ok := t.ids[instr]
	return id, ok
}

// Origin returns the instruction the given abstract pointer is rooted at.
func (t *PointerTable) Origin(id PointerID) *ir.Instruction {
	return t.origins[id]
}

// ParamIndex returns the parameter index of the given abstract pointer when it is rooted at a parameter load.
func (t *PointerTable) ParamIndex(id PointerID) (int, bool) {
	origin := t.origins[id]
	if origin.Op == ir.OpLoadParam {
		return origin.Param, true
	}
	return 0, false
}

// Size returns the number of abstract pointers allocated so far.
func (t *PointerTable) Size() int {
	return len(t.origins)
}

type setKind uint8

const (
	setBottom setKind = iota
	setFinite
	setTop
)

// A PointerSet is an element of the pointer lattice: Bottom (no information, the value of registers never written),
// a finite non-empty set of abstract pointers, or Top (the location may reference an untracked origin).
// The partial order is Bottom < any finite set < Top, with subset inclusion between finite sets; the join is set
// union. PointerSets must only be handled through pointers, never copied by value.
type PointerSet struct {
	kind  setKind
	elems intsets.Sparse
}

// BottomSet returns a new Bottom pointer set.
func BottomSet() *PointerSet { return &PointerSet{kind: setBottom} }

// TopSet returns a new Top pointer set.
func TopSet() *PointerSet { return &PointerSet{kind: setTop} }

// SinglePointer returns a new pointer set containing exactly id.
func SinglePointer(id PointerID) *PointerSet {
	s := &PointerSet{kind: setFinite}
	s.elems.Insert(int(id))
	return s
}

// NewPointerSet returns a new finite pointer set with the given elements, or Bottom when none are given.
func NewPointerSet(ids ...PointerID) *PointerSet {
	if len(ids) == 0 {
		return BottomSet()
	}
	s := &PointerSet{kind: setFinite}
	for _, id := range ids {
		s.elems.Insert(int(id))
	}
	return s
}

// IsBottom reports whether the set is Bottom.
func (s *PointerSet) IsBottom() bool { return s.kind == setBottom }

// IsTop reports whether the set is Top.
func (s *PointerSet) IsTop() bool { return s.kind == setTop }

// Has reports whether id is an element of the set. Top has no tracked elements.
func (s *PointerSet) Has(id PointerID) bool {
	return s.kind == setFinite && s.elems.Has(int(id))
}

// Len returns the number of tracked elements of the set.
func (s *PointerSet) Len() int {
	if s.kind != setFinite {
		return 0
	}
	return s.elems.Len()
}

// Elements returns the tracked elements of the set in ascending order.
func (s *PointerSet) Elements() []PointerID {
	if s.kind != setFinite {
		return nil
	}
	raw := s.elems.AppendTo(nil)
	ids := make([]PointerID, len(raw))
	for i, x := range raw {
		ids[i] = PointerID(x)
	}
	return ids
}

// Copy returns a new set with the same value.
func (s *PointerSet) Copy() *PointerSet {
	c := &PointerSet{kind: s.kind}
	c.elems.Copy(&s.elems)
	return c
}

// Union returns the join of the two sets as a new set.
func (s *PointerSet) Union(o *PointerSet) *PointerSet {
	c := s.Copy()
	c.unionWith(o)
	return c
}

// unionWith joins o into s and reports whether s changed.
func (s *PointerSet) unionWith(o *PointerSet) bool {
	if s.kind == setTop || o == nil || o.kind == setBottom {
		return false
	}
	if o.kind == setTop {
		s.kind = setTop
		s.elems.Clear()
		return true
	}
	changed := s.elems.UnionWith(&o.elems)
	if s.kind == setBottom {
		s.kind = setFinite
		changed = true
	}
	return changed
}

// Equal reports whether the two sets have the same lattice value.
func (s *PointerSet) Equal(o *PointerSet) bool {
	if s.kind != o.kind {
		return false
	}
	return s.kind != setFinite || s.elems.Equals(&o.elems)
}

func (s *PointerSet) String() string {
	switch s.kind {
	case setBottom:
		return "⊥"
	case setTop:
		return "⊤"
	default:
		return s.elems.String()
	}
}

// Environment is the abstract state at one program point: the pointer set currently held by each register, plus the
// set of abstract pointers that may have become reachable from outside the method. Escape status is tracked per
// abstract pointer, not per register, so that it propagates through every alias of the same origin.
// Environments must only be handled through pointers, never copied by value.
type Environment struct {
	// regs maps registers to their pointer set. A register without a binding holds Bottom; Bottom is never
	// stored explicitly, so that structural equality of the map coincides with lattice equality.
	regs map[ir.Reg]*PointerSet

	// escaped is the set of PointerIDs that may have escaped. Monotone: IDs are only ever added.
	escaped intsets.Sparse
}

// NewEnvironment returns the initial environment, in which every register holds Bottom and nothing has escaped.
func NewEnvironment() *Environment {
	return &Environment{regs: map[ir.Reg]*PointerSet{}}
}

// Pointers returns the pointer set held by reg. The returned set must not be mutated by the caller.
func (e *Environment) Pointers(reg ir.Reg) *PointerSet {
	if s, ok := e.regs[reg]; ok {
		return s
	}
	return BottomSet()
}

// SetPointers binds reg to a copy of s.
func (e *Environment) SetPointers(reg ir.Reg, s *PointerSet) {
	if s.IsBottom() {
		delete(e.regs, reg)
		return
	}
	e.regs[reg] = s.Copy()
}

// SetFreshPointer binds reg to the singleton set {id}, establishing a new non-aliased origin.
func (e *Environment) SetFreshPointer(reg ir.Reg, id PointerID) {
	e.regs[reg] = SinglePointer(id)
}

// SetMayEscape marks the abstract pointer id as escaped. The marking is irreversible.
func (e *Environment) SetMayEscape(id PointerID) {
	e.escaped.Insert(int(id))
}

// SetRegMayEscape marks every abstract pointer currently held by reg as escaped. Top and Bottom sets track no
// pointers, so they contribute nothing.
func (e *Environment) SetRegMayEscape(reg ir.Reg) {
	s, ok := e.regs[reg]
	if !ok || s.kind != setFinite {
		return
	}
	e.escaped.UnionWith(&s.elems)
}

// MayHaveEscaped reports whether the abstract pointer id may have escaped.
func (e *Environment) MayHaveEscaped(id PointerID) bool {
	return e.escaped.Has(int(id))
}

// Copy returns a new environment with the same value.
func (e *Environment) Copy() *Environment {
	c := &Environment{regs: make(map[ir.Reg]*PointerSet, len(e.regs))}
	for r, s := range e.regs {
		c.regs[r] = s.Copy()
	}
	c.escaped.Copy(&e.escaped)
	return c
}

// JoinWith joins o into e pointwise and reports whether e changed. JoinWith computes the least upper bound, so it
// is associative, commutative and idempotent, which the fixpoint iteration relies on for termination.
func (e *Environment) JoinWith(o *Environment) bool {
	changed := false
	for r, os := range o.regs {
		if es, ok := e.regs[r]; ok {
			if es.unionWith(os) {
				changed = true
			}
		} else {
			e.regs[r] = os.Copy()
			changed = true
		}
	}
	if e.escaped.UnionWith(&o.escaped) {
		changed = true
	}
	return changed
}

// Join returns the least upper bound of the two environments as a new environment.
func (e *Environment) Join(o *Environment) *Environment {
	c := e.Copy()
	c.JoinWith(o)
	return c
}

// Equal reports whether the two environments have the same lattice value.
func (e *Environment) Equal(o *Environment) bool {
	if o == nil || len(e.regs) != len(o.regs) {
		return false
	}
	for r, es := range e.regs {
		os, ok := o.regs[r]
		if !ok || !es.Equal(os) {
			return false
		}
	}
	return e.escaped.Equals(&o.escaped)
}

func (e *Environment) String() string {
	regs := make([]int, 0, len(e.regs))
	for r := range e.regs {
		regs = append(regs, int(r))
	}
	sort.Ints(regs)
	var b strings.Builder
	b.WriteByte('{')
	for i, r := range regs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "v%d: %s", r, e.regs[ir.Reg(r)])
	}
	fmt.Fprintf(&b, "} escaped: %s", e.escaped.String())
	return b.String()
}
