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
	"strconv"
	"strings"

	"golang.org/x/tools/container/intsets"
)

// A ParamSet is a set of parameter indices, with a distinguished Top element meaning "not reducible to a finite
// set of parameters". ParamSets must only be handled through pointers, never copied by value.
type ParamSet struct {
	top   bool
	elems intsets.Sparse
}

// NewParamSet returns a finite set containing the given indices.
func NewParamSet(indices ...int) *ParamSet {
	p := &ParamSet{}
	for _, i := range indices {
		p.elems.Insert(i)
	}
	return p
}

// TopParamSet returns the Top parameter set.
func TopParamSet() *ParamSet { return &ParamSet{top: true} }

// IsTop reports whether the set is Top.
func (p *ParamSet) IsTop() bool { return p.top }

// Add inserts the index into a finite set. Adding to Top is a no-op.
func (p *ParamSet) Add(index int) {
	if !p.top {
		p.elems.Insert(index)
	}
}

// Has reports whether index is an element of a finite set. Top tracks no elements.
func (p *ParamSet) Has(index int) bool {
	return !p.top && p.elems.Has(index)
}

// Len returns the number of elements of a finite set.
func (p *ParamSet) Len() int {
	if p.top {
		return 0
	}
	return p.elems.Len()
}

// Elements returns the elements of a finite set in ascending order.
func (p *ParamSet) Elements() []int {
	if p.top {
		return nil
	}
	return p.elems.AppendTo(nil)
}

// Copy returns a new set with the same value.
func (p *ParamSet) Copy() *ParamSet {
	c := &ParamSet{top: p.top}
	c.elems.Copy(&p.elems)
	return c
}

// Equal reports whether the two sets are equal.
func (p *ParamSet) Equal(o *ParamSet) bool {
	if p.top != o.top {
		return false
	}
	return p.top || p.elems.Equals(&o.elems)
}

func (p *ParamSet) String() string {
	if p.top {
		return "Top"
	}
	var b strings.Builder
	b.WriteByte('(')
	for i, idx := range p.Elements() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "#%d", idx)
	}
	b.WriteByte(')')
	return b.String()
}

// EscapeSummary is the per-method result of the analysis: which parameters may be returned and which may become
// reachable from outside the method through any other channel. Summaries are computed once after the method's
// fixpoint converges and are immutable thereafter, so they can be shared freely between concurrent readers.
//
// The summary is sound but may be imprecise: a parameter reported as escaping or returned may in fact never do so
// on a concrete execution, never the other way around.
type EscapeSummary struct {
	// ReturnedParameters is either Top, when the return value may alias something that is not reducible to a
	// finite set of input parameters, or the finite set of parameter indices that may be returned. Non-parameter
	// origins in the returned set (e.g. a local allocation returned to the caller) are invisible here: callers
	// only care about aliasing with their own arguments.
	ReturnedParameters *ParamSet

	// EscapingParameters is the set of indices of parameters that may become reachable from outside the method
	// other than by being returned: stored to a field, or passed to a method that lets them escape. Always
	// finite; an absent index means the analysis proved the parameter local.
	EscapingParameters *ParamSet
}

// NewEscapeSummary returns a summary with the given returned-parameter set and escaping parameter indices.
func NewEscapeSummary(returned *ParamSet, escaping ...int) EscapeSummary {
	return EscapeSummary{
		ReturnedParameters: returned,
		EscapingParameters: NewParamSet(escaping...),
	}
}

// Equal reports whether the two summaries are equal.
func (s EscapeSummary) Equal(o EscapeSummary) bool {
	return s.ReturnedParameters.Equal(o.ReturnedParameters) &&
		s.EscapingParameters.Equal(o.EscapingParameters)
}

func (s EscapeSummary) String() string {
	return s.ToSExpr()
}

// GetEscapeSummary derives the escape summary of a method from its converged fixpoint iteration.
func GetEscapeSummary(f *FixpointIterator) EscapeSummary {
	table := f.table
	exitEnv := f.ExitStateAt(f.cfg.Exit)

	escaping := NewParamSet()
	for id := PointerID(0); int(id) < table.Size(); id++ {
		if idx, ok := table.ParamIndex(id); ok && exitEnv.MayHaveEscaped(id) {
			escaping.Add(idx)
		}
	}

	returnedPtrs := f.ReturnedPointers()
	var returned *ParamSet
	if returnedPtrs.IsTop() {
		returned = TopParamSet()
	} else {
		returned = NewParamSet()
		for _, id := range returnedPtrs.Elements() {
			if idx, ok := table.ParamIndex(id); ok {
				returned.Add(idx)
			}
		}
	}

	return EscapeSummary{ReturnedParameters: returned, EscapingParameters: escaping}
}

// ToSExpr writes the summary in its compact textual form, used for caching summaries across runs:
//
//	( ( <escaping-index>* ) <returned> )
//
// where <returned> is either a parenthesized index list or the literal Top, indices are prefixed with '#' and each
// list is in ascending order. For example, escaping={1} returned={0} serializes to "((#1) (#0))".
func (s EscapeSummary) ToSExpr() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(s.EscapingParameters.String())
	b.WriteByte(' ')
	b.WriteString(s.ReturnedParameters.String())
	b.WriteByte(')')
	return b.String()
}

// FromSExpr parses the textual form produced by ToSExpr. Malformed input yields an error, never a default
// summary: silently reading a corrupt cache entry as "nothing escapes" would be unsound.
func FromSExpr(input string) (EscapeSummary, error) {
	p := &sexprParser{input: input}
	summary, err := p.parseSummary()
	if err != nil {
		return EscapeSummary{}, fmt.Errorf("malformed escape summary %q: %w", input, err)
	}
	return summary, nil
}

// sexprParser is a minimal recursive-descent reader for the summary grammar. The grammar is closed (two index
// lists and one literal), so there is no need for a generic s-expression library.
type sexprParser struct {
	input string
	pos   int
}

func (p *sexprParser) parseSummary() (EscapeSummary, error) {
	if err := p.expect('('); err != nil {
		return EscapeSummary{}, err
	}
	escaping, err := p.parseIndexList()
	if err != nil {
		return EscapeSummary{}, err
	}
	var returned *ParamSet
	p.skipSpaces()
	if p.peek() == '(' {
		returned, err = p.parseIndexList()
		if err != nil {
			return EscapeSummary{}, err
		}
	} else {
		atom := p.readAtom()
		if atom != "Top" {
			return EscapeSummary{}, fmt.Errorf("expected index list or Top at offset %d", p.pos)
		}
		returned = TopParamSet()
	}
	if err := p.expect(')'); err != nil {
		return EscapeSummary{}, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return EscapeSummary{}, fmt.Errorf("trailing input at offset %d", p.pos)
	}
	return EscapeSummary{ReturnedParameters: returned, EscapingParameters: escaping}, nil
}

func (p *sexprParser) parseIndexList() (*ParamSet, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	set := NewParamSet()
	for {
		p.skipSpaces()
		switch {
		case p.pos >= len(p.input):
			return nil, fmt.Errorf("unterminated index list")
		case p.peek() == ')':
			p.pos++
			return set, nil
		case p.peek() == '#':
			p.pos++
			start := p.pos
			for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
				p.pos++
			}
			if p.pos == start {
				return nil, fmt.Errorf("expected parameter index at offset %d", start)
			}
			idx, err := strconv.Atoi(p.input[start:p.pos])
			if err != nil {
				return nil, fmt.Errorf("invalid parameter index at offset %d: %v", start, err)
			}
			set.Add(idx)
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", p.input[p.pos], p.pos)
		}
	}
}

func (p *sexprParser) expect(c byte) error {
	p.skipSpaces()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d", string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *sexprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *sexprParser) readAtom() string {
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != '(' && p.input[p.pos] != ')' && p.input[p.pos] != ' ' {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *sexprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}
