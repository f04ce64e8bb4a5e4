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

import (
	"sort"

	"github.com/lfkdsk/redex/internal/funcutil"
)

// Method is one method body, identified by a descriptor string (e.g. "LFoo;.bar:(LBar;)LFoo;").
type Method struct {
	// ID is the method identity. Invoke instructions name their callee by this string.
	ID string

	// CFG is the control-flow graph of the method body.
	CFG *CFG
}

// Program is a set of methods to be analyzed together.
type Program struct {
	// Methods maps method identities to their bodies.
	Methods map[string]*Method
}

// NewProgram returns a program containing the given methods.
func NewProgram(methods ...*Method) *Program {
	p := &Program{Methods: make(map[string]*Method, len(methods))}
	for _, m := range methods {
		p.Methods[m.ID] = m
	}
	return p
}

// MethodIDs returns the identities of all methods of the program, sorted.
func (p *Program) MethodIDs() []string {
	ids := make([]string, 0, len(p.Methods))
	for id := range p.Methods {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Callees returns the identities of the methods of the program that m may call, without duplicates. Callees outside
// the program are omitted; analyses treat calls to them as calls to unknown methods.
func (p *Program) Callees(m *Method) []string {
	callees := map[string]bool{}
	m.CFG.ForEachInstruction(func(_ *BasicBlock, instr *Instruction) {
		if instr.Op != OpInvoke {
			return
		}
		if _, ok := p.Methods[instr.Method]; ok {
			callees[instr.Method] = true
		}
	})
	return funcutil.SetToOrderedSlice(callees)
}
