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
	"fmt"
	"strings"
)

// Reg identifies a virtual register of a method body.
type Reg uint16

// ResultReg is the pseudo-register that holds the result of the most recent instruction producing one (allocation,
// field get, invoke). A MoveResult instruction copies it into a regular register.
const ResultReg Reg = ^Reg(0)

// Op enumerates the instruction kinds of the representation. The set is closed: any instruction that does not map to
// one of the specific kinds below must be encoded as OpUnknown, which analyses treat maximally conservatively.
type Op uint8

const (
	// OpNop does nothing.
	OpNop Op = iota

	// OpLoadParam loads the object-valued parameter at index Param into Dest.
	OpLoadParam

	// OpNewInstance allocates a new object of type Type. The result is written to ResultReg.
	OpNewInstance

	// OpNewArray allocates a new array of type Type. The result is written to ResultReg.
	OpNewArray

	// OpMove copies the object reference in Src to Dest.
	OpMove

	// OpMoveResult copies ResultReg to Dest. It must directly follow the instruction producing the result.
	OpMoveResult

	// OpFieldGet reads the object field Field (of the object in Obj unless Static) into ResultReg.
	OpFieldGet

	// OpFieldPut stores the object reference in Src into the field Field (of the object in Obj unless Static).
	OpFieldPut

	// OpInvoke calls the method identified by Method with the object arguments Args. If HasResult is set, the
	// object result is written to ResultReg.
	OpInvoke

	// OpReturn returns the object reference in Src to the caller.
	OpReturn

	// OpReturnVoid returns without a value.
	OpReturnVoid

	// OpUnknown stands for any instruction kind not represented above. Args lists the object registers it reads,
	// and HasResult indicates whether it writes an object result to ResultReg.
	OpUnknown
)

var opNames = map[Op]string{
	OpNop:         "nop",
	OpLoadParam:   "load-param-object",
	OpNewInstance: "new-instance",
	OpNewArray:    "new-array",
	OpMove:        "move-object",
	OpMoveResult:  "move-result-object",
	OpFieldGet:    "field-get-object",
	OpFieldPut:    "field-put-object",
	OpInvoke:      "invoke",
	OpReturn:      "return-object",
	OpReturnVoid:  "return-void",
	OpUnknown:     "unknown",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Instruction is one typed instruction of a method body. Only the fields relevant to the instruction's Op are
// meaningful; the constructors below populate them.
type Instruction struct {
	// Op is the instruction kind.
	Op Op

	// Dest is the destination register of OpLoadParam, OpMove and OpMoveResult.
	Dest Reg

	// Src is the source register of OpMove, OpFieldPut (the stored value) and OpReturn.
	Src Reg

	// Obj is the register holding the accessed object for instance field accesses.
	Obj Reg

	// Args are the object-valued argument registers of OpInvoke, or the object registers read by OpUnknown.
	Args []Reg

	// Param is the parameter index of OpLoadParam.
	Param int

	// Type is the class or array type reference of OpNewInstance and OpNewArray.
	Type string

	// Field is the field reference of OpFieldGet and OpFieldPut.
	Field string

	// Method is the callee identity of OpInvoke. Resolving virtual dispatch to a single identity is the
	// responsibility of whoever produced the instruction.
	Method string

	// HasResult indicates that OpInvoke or OpUnknown writes an object result to ResultReg.
	HasResult bool

	// Static indicates that a field access targets a static field, in which case Obj is meaningless.
	Static bool
}

// Nop returns a new nop instruction.
func Nop() *Instruction { return &Instruction{Op: OpNop} }

// LoadParam returns a new instruction loading the parameter at index into dest.
func LoadParam(dest Reg, index int) *Instruction {
	return &Instruction{Op: OpLoadParam, Dest: dest, Param: index}
}

// NewInstance returns a new object allocation of the given type. The result goes to ResultReg.
func NewInstance(typ string) *Instruction {
	return &Instruction{Op: OpNewInstance, Type: typ}
}

// NewArray returns a new array allocation of the given type. The result goes to ResultReg.
func NewArray(typ string) *Instruction {
	return &Instruction{Op: OpNewArray, Type: typ}
}

// Move returns a new register-to-register object copy.
func Move(dest, src Reg) *Instruction {
	return &Instruction{Op: OpMove, Dest: dest, Src: src}
}

// MoveResult returns a new instruction copying ResultReg into dest.
func MoveResult(dest Reg) *Instruction {
	return &Instruction{Op: OpMoveResult, Dest: dest}
}

// StaticGet returns a new static field read. The result goes to ResultReg.
func StaticGet(field string) *Instruction {
	return &Instruction{Op: OpFieldGet, Field: field, Static: true}
}

// InstanceGet returns a new instance field read on the object in obj. The result goes to ResultReg.
func InstanceGet(obj Reg, field string) *Instruction {
	return &Instruction{Op: OpFieldGet, Obj: obj, Field: field}
}

// StaticPut returns a new static field store of the value in src.
func StaticPut(src Reg, field string) *Instruction {
	return &Instruction{Op: OpFieldPut, Src: src, Field: field, Static: true}
}

// InstancePut returns a new instance field store of the value in src into a field of the object in obj.
func InstancePut(src, obj Reg, field string) *Instruction {
	return &Instruction{Op: OpFieldPut, Src: src, Obj: obj, Field: field}
}

// Invoke returns a new call to method with an object result and the given object arguments.
func Invoke(method string, args ...Reg) *Instruction {
	return &Instruction{Op: OpInvoke, Method: method, Args: args, HasResult: true}
}

// InvokeVoid returns a new call to method without an object result.
func InvokeVoid(method string, args ...Reg) *Instruction {
	return &Instruction{Op: OpInvoke, Method: method, Args: args}
}

// Return returns a new object-valued return of the reference in src.
func Return(src Reg) *Instruction {
	return &Instruction{Op: OpReturn, Src: src}
}

// ReturnVoid returns a new valueless return.
func ReturnVoid() *Instruction { return &Instruction{Op: OpReturnVoid} }

// Unknown returns a new unrecognized instruction reading the object registers in args. If hasResult is true, the
// instruction writes an object result to ResultReg.
func Unknown(hasResult bool, args ...Reg) *Instruction {
	return &Instruction{Op: OpUnknown, Args: args, HasResult: hasResult}
}

func (i *Instruction) String() string {
	var b strings.Builder
	b.WriteString(i.Op.String())
	switch i.Op {
	case OpLoadParam:
		fmt.Fprintf(&b, " v%d #%d", i.Dest, i.Param)
	case OpNewInstance, OpNewArray:
		fmt.Fprintf(&b, " %q", i.Type)
	case OpMove:
		fmt.Fprintf(&b, " v%d v%d", i.Dest, i.Src)
	case OpMoveResult:
		fmt.Fprintf(&b, " v%d", i.Dest)
	case OpFieldGet:
		if i.Static {
			fmt.Fprintf(&b, " %q", i.Field)
		} else {
			fmt.Fprintf(&b, " v%d %q", i.Obj, i.Field)
		}
	case OpFieldPut:
		if i.Static {
			fmt.Fprintf(&b, " v%d %q", i.Src, i.Field)
		} else {
			fmt.Fprintf(&b, " v%d v%d %q", i.Src, i.Obj, i.Field)
		}
	case OpInvoke:
		b.WriteString(" (")
		for n, a := range i.Args {
			if n > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "v%d", a)
		}
		fmt.Fprintf(&b, ") %q", i.Method)
	case OpReturn:
		fmt.Fprintf(&b, " v%d", i.Src)
	}
	return b.String()
}
