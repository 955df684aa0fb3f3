package compiler

import (
	"fmt"
	"strings"
)

// tempRegs is the rotating pool of caller-saved scratch registers codegen
// draws from while evaluating nested binary expressions (spec.md §4.3.3).
var tempRegs = []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6"}

// CodeGen walks a type-checked AST and emits RISC-V-flavoured assembly
// text. It computes its own struct-offset/size tables and per-function
// local-offset tables independently of the analyzer's (spec.md §4.3.1),
// assuming the AST is already well-typed.
type CodeGen struct {
	out         strings.Builder
	labelCount  int
	tempCount   int
	localOffset map[string]int
	localType   map[string]string // variable -> struct name, "" if not a struct
	globalType  map[string]string
	funcReturn  map[string]string // function -> struct return type name, "" otherwise
	structs     *StructRegistry
	currentFunc string
}

func newCodeGen(structs *StructRegistry) *CodeGen {
	return &CodeGen{
		localType:  make(map[string]string),
		globalType: make(map[string]string),
		funcReturn: make(map[string]string),
		structs:    structs,
	}
}

func (cg *CodeGen) emit(format string, args ...interface{}) {
	cg.out.WriteString(fmt.Sprintf(format, args...))
	cg.out.WriteByte('\n')
}

func (cg *CodeGen) label(name string) {
	cg.out.WriteString(name)
	cg.out.WriteString(":\n")
}

func (cg *CodeGen) newLabel(prefix string) string {
	l := fmt.Sprintf("%s%d", prefix, cg.labelCount)
	cg.labelCount++
	return l
}

func (cg *CodeGen) getTempReg() string {
	r := tempRegs[cg.tempCount%len(tempRegs)]
	cg.tempCount++
	return r
}

func (cg *CodeGen) releaseTempReg() {
	cg.tempCount--
}

// Generate compiles prog (already analyzed with zero errors) into a
// complete assembly listing, applying the peephole pass before returning.
func Generate(prog *Program, structs *StructRegistry) string {
	cg := newCodeGen(structs)
	cg.emit(".globl main")
	cg.emit(".import berkeley_utils.s")
	cg.emit(".import read_int.s")

	for _, fn := range prog.Functions {
		if real, ok := fn.ReturnType.(*RealReturn); ok {
			if st, ok := real.Type.(*StructType); ok {
				cg.funcReturn[fn.Name] = st.Name
				continue
			}
		}
		cg.funcReturn[fn.Name] = ""
	}

	cg.emit("")
	cg.emit(".data")
	cg.emit("input_file_ptr: .word")
	for _, d := range prog.Declarations {
		cg.emit("%s: .word 0", d.Name)
		if st, ok := d.Type.(*StructType); ok {
			cg.globalType[d.Name] = st.Name
		} else {
			cg.globalType[d.Name] = ""
		}
	}

	cg.emit("")
	cg.emit(".text")

	for _, fn := range prog.Functions {
		cg.genFunction(fn)
	}

	return strings.Join(Peephole(strings.Split(strings.TrimRight(cg.out.String(), "\n"), "\n")), "\n") + "\n"
}

func (cg *CodeGen) genFunction(fn *Function) {
	cg.tempCount = 0
	cg.currentFunc = fn.Name
	cg.emit("")
	cg.label(fn.Name)

	if fn.Name == "main" {
		cg.emit("    lw t0, 4(a1)")
		cg.emit("    la t1, input_file_ptr")
		cg.emit("    sw t0, 0(t1)")
	}

	frameSize := (len(fn.Locals)+len(fn.Params))*4 + 8
	cg.emit("    addi sp, sp, -%d", frameSize)
	cg.emit("    sw ra, %d(sp)", frameSize-4)
	cg.emit("    sw fp, %d(sp)", frameSize-8)
	cg.emit("    addi fp, sp, %d", frameSize)

	cg.localOffset = make(map[string]int)
	cg.localType = make(map[string]string)
	offset := -8

	for i, param := range fn.Params {
		offset -= 4
		cg.localOffset[param.Name] = offset
		if st, ok := param.Type.(*StructType); ok {
			cg.localType[param.Name] = st.Name
		} else {
			cg.localType[param.Name] = ""
		}
		if i < 8 {
			cg.emit("    sw a%d, %d(fp)", i, offset)
		} else {
			callerOffset := (i - 8) * 4
			cg.emit("    lw t0, %d(fp)", callerOffset)
			cg.emit("    sw t0, %d(fp)", offset)
		}
	}

	for _, local := range fn.Locals {
		offset -= 4
		cg.localOffset[local.Name] = offset
		if st, ok := local.Type.(*StructType); ok {
			cg.localType[local.Name] = st.Name
		} else {
			cg.localType[local.Name] = ""
		}
	}

	for _, stmt := range fn.Body {
		cg.genStmt(stmt)
	}

	cg.emit("")
	cg.label(fn.Name + "_epilog")
	cg.emit("    lw ra, %d(sp)", frameSize-4)
	cg.emit("    lw fp, %d(sp)", frameSize-8)
	cg.emit("    addi sp, sp, %d", frameSize)
	if fn.Name == "main" {
		cg.emit("    li a0, 0")
		cg.emit("    jal zero, exit")
	} else {
		cg.emit("    ret")
	}
}

// exprStructType best-effort re-derives the struct name an expression
// evaluates to, independent of the analyzer's symbol table (spec.md
// §4.3.1). Returns "" for a non-struct or undeterminable expression.
func (cg *CodeGen) exprStructType(e Expr) string {
	switch expr := e.(type) {
	case *Ident:
		if t, ok := cg.localType[expr.Name]; ok {
			return t
		}
		return cg.globalType[expr.Name]
	case *Dot:
		leftType := cg.exprStructType(expr.Left)
		if leftType == "" {
			return ""
		}
		if def, ok := cg.structs.Lookup(leftType); ok {
			if f, ok := def.Fields[expr.Field]; ok {
				if st, ok := f.Type.(*StructType); ok {
					return st.Name
				}
			}
		}
		return ""
	case *New:
		return expr.Struct
	case *Invocation:
		return cg.funcReturn[expr.Name]
	}
	return ""
}

func (cg *CodeGen) lvalueStructType(lv LValue) string {
	switch l := lv.(type) {
	case *LValueID:
		if t, ok := cg.localType[l.Name]; ok {
			return t
		}
		return cg.globalType[l.Name]
	case *LValueDot:
		leftType := cg.lvalueStructType(l.Left)
		if leftType == "" {
			return ""
		}
		if def, ok := cg.structs.Lookup(leftType); ok {
			if f, ok := def.Fields[l.Field]; ok {
				if st, ok := f.Type.(*StructType); ok {
					return st.Name
				}
			}
		}
		return ""
	}
	return ""
}

func (cg *CodeGen) genStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Assignment:
		cg.genAssignment(s)
	case *Block:
		for _, inner := range s.Stmts {
			cg.genStmt(inner)
		}
	case *Conditional:
		cg.genConditional(s)
	case *While:
		cg.genWhile(s)
	case *Delete:
		cg.tempCount = 0
		cg.genExpr(s.Expr)
		cg.emit("    jal ra, free")
	case *InvocationStmt:
		cg.genExpr(s.Call)
	case *Print:
		cg.tempCount = 0
		cg.genExpr(s.Expr)
		cg.emit("    jal ra, print_int")
	case *PrintLn:
		cg.tempCount = 0
		cg.genExpr(s.Expr)
		cg.emit("    jal ra, print_int")
		cg.emit("    li a0, 10")
		cg.emit("    jal ra, print_char")
	case *Return:
		cg.tempCount = 0
		if s.Expr != nil {
			cg.genExpr(s.Expr)
		}
		cg.emit("    j %s_epilog", cg.currentFunc)
	case *ReturnEmpty:
		cg.emit("    j %s_epilog", cg.currentFunc)
	}
}

func (cg *CodeGen) genAssignment(s *Assignment) {
	cg.tempCount = 0
	switch target := s.Target.(type) {
	case *LValueID:
		cg.genExpr(s.Source)
		if offset, ok := cg.localOffset[target.Name]; ok {
			cg.emit("    sw a0, %d(fp)", offset)
		} else {
			cg.emit("    la t0, %s", target.Name)
			cg.emit("    sw a0, 0(t0)")
		}
	case *LValueDot:
		cg.computeLValueAddress(target)
		addrReg := cg.getTempReg()
		cg.emit("    mv %s, a0", addrReg)
		cg.genExpr(s.Source)
		cg.emit("    sw a0, 0(%s)", addrReg)
		cg.releaseTempReg()
	}
}

// computeLValueAddress leaves the address of a field lvalue in a0, per
// spec.md §4.3.2. For a bare name it loads the variable's value (the struct
// pointer), not the address of its slot.
func (cg *CodeGen) computeLValueAddress(lvalue LValue) {
	switch l := lvalue.(type) {
	case *LValueID:
		if offset, ok := cg.localOffset[l.Name]; ok {
			cg.emit("    lw a0, %d(fp)", offset)
		} else {
			cg.emit("    la a0, %s", l.Name)
			cg.emit("    lw a0, 0(a0)")
		}
	case *LValueDot:
		if id, ok := l.Left.(*LValueID); ok {
			if offset, ok := cg.localOffset[id.Name]; ok {
				cg.emit("    lw a0, %d(fp)", offset)
			} else {
				cg.emit("    la a0, %s", id.Name)
				cg.emit("    lw a0, 0(a0)")
			}
		} else {
			cg.computeLValueAddress(l.Left)
			cg.emit("    lw a0, 0(a0)")
		}
		leftType := cg.lvalueStructType(l.Left)
		if leftType != "" {
			if def, ok := cg.structs.Lookup(leftType); ok {
				if f, ok := def.Fields[l.Field]; ok && f.Offset != 0 {
					cg.emit("    addi a0, a0, %d", f.Offset)
				}
			}
		}
	}
}

func (cg *CodeGen) genConditional(s *Conditional) {
	cg.tempCount = 0
	elseLabel := cg.newLabel("else")
	endLabel := cg.newLabel("endif")

	cg.genExpr(s.Guard)
	cg.emit("    beqz a0, %s", elseLabel)
	cg.genStmt(s.Then)
	cg.emit("    j %s", endLabel)
	cg.label(elseLabel)
	cg.genStmt(s.Else)
	cg.label(endLabel)
}

func (cg *CodeGen) genWhile(s *While) {
	cg.tempCount = 0
	start := cg.newLabel("while_start")
	end := cg.newLabel("while_end")

	cg.label(start)
	cg.genExpr(s.Guard)
	cg.emit("    beqz a0, %s", end)
	cg.genStmt(s.Body)
	cg.emit("    j %s", start)
	cg.label(end)
}

// genExpr evaluates expr, leaving its value in a0.
func (cg *CodeGen) genExpr(expr Expr) {
	switch e := expr.(type) {
	case *IntegerLit:
		var n uint32 // uint32 arithmetic wraps modulo 2^32
		for _, d := range e.Value {
			n = n*10 + uint32(d-'0')
		}
		cg.emit("    li a0, %d", int32(n))
	case *TrueLit:
		cg.emit("    li a0, 1")
	case *FalseLit:
		cg.emit("    li a0, 0")
	case *NullLit:
		cg.emit("    li a0, 0")
	case *ReadExpr:
		cg.emit("    la a0, input_file_ptr")
		cg.emit("    lw a0, 0(a0)")
		cg.emit("    jal ra, read_int")
	case *Ident:
		cg.genIdent(e)
	case *Dot:
		cg.genDot(e)
	case *New:
		size := 4
		if def, ok := cg.structs.Lookup(e.Struct); ok {
			size = def.Size
		}
		cg.emit("    li a0, %d", size)
		cg.emit("    jal ra, malloc")
	case *Invocation:
		cg.genInvocation(e)
	case *Unary:
		cg.genUnary(e)
	case *Binary:
		cg.genBinary(e)
	}
}

func (cg *CodeGen) genIdent(e *Ident) {
	if offset, ok := cg.localOffset[e.Name]; ok {
		cg.emit("    lw a0, %d(fp)", offset)
		return
	}
	cg.emit("    la a0, %s", e.Name)
	cg.emit("    lw a0, 0(a0)")
}

func (cg *CodeGen) genDot(e *Dot) {
	cg.genExpr(e.Left)
	leftType := cg.exprStructType(e.Left)
	offset := 0
	if leftType != "" {
		if def, ok := cg.structs.Lookup(leftType); ok {
			if f, ok := def.Fields[e.Field]; ok {
				offset = f.Offset
			}
		}
	}
	cg.emit("    lw a0, %d(a0)", offset)
}

// genInvocation implements the RISC-V-ish calling convention of spec.md
// §4.3.6: the first 8 args pass through a0..a7; the rest are stored in
// order at the bottom of the save area and, once the in-register args are
// loaded, moved up over the freed register slots, so stack arg j sits at
// j*4(sp) at the call.
func (cg *CodeGen) genInvocation(e *Invocation) {
	numArgs := len(e.Args)
	if numArgs == 0 {
		cg.emit("    jal ra, %s", e.Name)
		return
	}

	numStackArgs := numArgs - 8
	if numStackArgs < 0 {
		numStackArgs = 0
	}

	cg.emit("    addi sp, sp, -%d", numArgs*4)

	for i, arg := range e.Args {
		cg.genExpr(arg)
		offset := (numArgs - 1 - i) * 4
		if i >= 8 {
			offset = (i - 8) * 4
		}
		cg.emit("    sw a0, %d(sp)", offset)
	}

	regArgs := numArgs
	if regArgs > 8 {
		regArgs = 8
	}
	for i := 0; i < regArgs; i++ {
		offset := (numArgs - 1 - i) * 4
		cg.emit("    lw a%d, %d(sp)", i, offset)
	}

	if numStackArgs > 0 {
		cleanup := (numArgs - numStackArgs) * 4
		for i := numStackArgs - 1; i >= 0; i-- {
			srcOffset := i * 4
			dstOffset := cleanup + i*4
			if srcOffset != dstOffset {
				cg.emit("    lw t0, %d(sp)", srcOffset)
				cg.emit("    sw t0, %d(sp)", dstOffset)
			}
		}
		cg.emit("    addi sp, sp, %d", cleanup)
	} else {
		cg.emit("    addi sp, sp, %d", numArgs*4)
	}

	cg.emit("    jal ra, %s", e.Name)

	if numStackArgs > 0 {
		cg.emit("    addi sp, sp, %d", numStackArgs*4)
	}
}

func (cg *CodeGen) genUnary(e *Unary) {
	cg.genExpr(e.Operand)
	switch e.Op {
	case UnaryMinus:
		cg.emit("    neg a0, a0")
	case UnaryNot:
		cg.emit("    seqz a0, a0")
	}
}

// genBinary implements short-circuit evaluation for && and || (spec.md
// §4.3.4) and the rotating-temp-register scheme for every other operator.
func (cg *CodeGen) genBinary(e *Binary) {
	switch e.Op {
	case OpAnd:
		falseLabel := cg.newLabel("and_false")
		endLabel := cg.newLabel("and_end")
		cg.genExpr(e.Left)
		cg.emit("    beqz a0, %s", falseLabel)
		cg.genExpr(e.Right)
		cg.emit("    snez a0, a0")
		cg.emit("    j %s", endLabel)
		cg.label(falseLabel)
		cg.emit("    li a0, 0")
		cg.label(endLabel)
		return
	case OpOr:
		trueLabel := cg.newLabel("or_true")
		endLabel := cg.newLabel("or_end")
		cg.genExpr(e.Left)
		cg.emit("    bnez a0, %s", trueLabel)
		cg.genExpr(e.Right)
		cg.emit("    snez a0, a0")
		cg.emit("    j %s", endLabel)
		cg.label(trueLabel)
		cg.emit("    li a0, 1")
		cg.label(endLabel)
		return
	}

	cg.genExpr(e.Left)
	tmp := cg.getTempReg()
	cg.emit("    mv %s, a0", tmp)
	cg.genExpr(e.Right)

	switch e.Op {
	case OpAdd:
		cg.emit("    add a0, %s, a0", tmp)
	case OpSub:
		cg.emit("    sub a0, %s, a0", tmp)
	case OpMul:
		cg.emit("    mul a0, %s, a0", tmp)
	case OpDiv:
		cg.emit("    div a0, %s, a0", tmp)
	case OpLt:
		cg.emit("    slt a0, %s, a0", tmp)
	case OpLe:
		cg.emit("    slt a0, a0, %s", tmp)
		cg.emit("    xori a0, a0, 1")
	case OpGt:
		cg.emit("    slt a0, a0, %s", tmp)
	case OpGe:
		cg.emit("    slt a0, %s, a0", tmp)
		cg.emit("    xori a0, a0, 1")
	case OpEq:
		cg.emit("    sub a0, %s, a0", tmp)
		cg.emit("    seqz a0, a0")
	case OpNe:
		cg.emit("    sub a0, %s, a0", tmp)
		cg.emit("    snez a0, a0")
	}

	cg.releaseTempReg()
}
