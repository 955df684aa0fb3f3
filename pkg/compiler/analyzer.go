package compiler

import "fmt"

// Analyzer runs the semantic pass of spec.md §4.2: scope/struct
// registration, then per-function type checking, accumulating diagnostics
// rather than aborting on the first one. Grounded line-for-line on
// original_source/static_semantic_ast_visitor.py.
type Analyzer struct {
	errors        []string
	globalScope   *Scope
	currentScope  *Scope
	structs       *StructRegistry
	currentFunc   *FunctionEntry
	hasMain       bool
}

// Analyze runs the full pass over prog and returns the accumulated error
// messages (already formatted as "ERROR. <msg> #<line>"); the caller is
// responsible for printing them and the trailing "ERRORS FOUND N" line
// exactly as the driver does (see compile.go).
func Analyze(prog *Program) []string {
	a := &Analyzer{
		globalScope: NewScope(nil),
		structs:     NewStructRegistry(),
	}
	a.currentScope = a.globalScope
	a.analyzeProgram(prog)
	return a.errors
}

func (a *Analyzer) addError(line int, format string, args ...interface{}) {
	a.errors = append(a.errors, fmt.Sprintf("ERROR. %s #%d", fmt.Sprintf(format, args...), line))
}

func typeString(t Type) string {
	if t == nil {
		return "unknown"
	}
	return t.String()
}

func returnTypeString(rt ReturnType) string {
	if rt == nil {
		return "unknown"
	}
	return rt.String()
}

func (a *Analyzer) analyzeProgram(prog *Program) {
	// Pass 1: register struct names, catching duplicates.
	for _, td := range prog.Types {
		if !a.structs.Declare(td.Name, td.Line) {
			a.addError(td.Line, "Struct '%s' already declared", td.Name)
		}
	}

	// Pass 2: lay out each struct's fields.
	for _, td := range prog.Types {
		a.analyzeTypeDecl(td)
	}

	// Pass 3: top-level variable declarations.
	for _, d := range prog.Declarations {
		a.analyzeDeclaration(d)
	}

	// Pass 4: declare every function in the global scope, checking main().
	for _, fn := range prog.Functions {
		if a.globalScope.LookupLocal(fn.Name) != nil {
			a.addError(fn.Line, "Function '%s' already declared", fn.Name)
			continue
		}
		entry := &FunctionEntry{Name: fn.Name, ReturnType: fn.ReturnType, Params: fn.Params, Line: fn.Line}
		a.globalScope.Insert(fn.Name, entry)

		if fn.Name == "main" {
			a.hasMain = true
			if len(fn.Params) != 0 {
				a.addError(fn.Line, "main() must take no arguments")
			}
			if real, ok := fn.ReturnType.(*RealReturn); !ok || !isInt(real.Type) {
				a.addError(fn.Line, "main() must return int")
			}
		}
	}

	// Pass 5: check each function body.
	for _, fn := range prog.Functions {
		a.analyzeFunction(fn)
	}

	if !a.hasMain {
		a.addError(1, "Program must have a main() function")
	}
}

func isInt(t Type) bool  { _, ok := t.(*IntType); return ok }
func isBool(t Type) bool { _, ok := t.(*BoolType); return ok }

func (a *Analyzer) analyzeTypeDecl(td *TypeDeclaration) {
	seen := make(map[string]bool)
	var fields []*Declaration
	for _, f := range td.Fields {
		if seen[f.Name] {
			a.addError(f.Line, "Field '%s' already declared in struct '%s'", f.Name, td.Name)
			continue
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}
	a.structs.Layout(td.Name, fields)
}

func (a *Analyzer) analyzeDeclaration(d *Declaration) {
	if a.currentScope.LookupLocal(d.Name) != nil {
		a.addError(d.Line, "Variable '%s' already declared in this scope", d.Name)
		return
	}
	a.currentScope.Insert(d.Name, &VariableEntry{Name: d.Name, Type: d.Type, Line: d.Line})
}

func (a *Analyzer) analyzeFunction(fn *Function) {
	a.currentScope = NewScope(a.globalScope)
	entry, _ := a.globalScope.Lookup(fn.Name).(*FunctionEntry)
	a.currentFunc = entry

	paramNames := make(map[string]bool)
	for _, param := range fn.Params {
		if paramNames[param.Name] {
			a.addError(param.Line, "Parameter '%s' already declared", param.Name)
			continue
		}
		paramNames[param.Name] = true
		a.currentScope.Insert(param.Name, &VariableEntry{Name: param.Name, Type: param.Type, Line: param.Line})
	}

	for _, local := range fn.Locals {
		if paramNames[local.Name] {
			a.addError(local.Line, "Local variable '%s' cannot redeclare parameter", local.Name)
			continue
		}
		a.analyzeDeclaration(local)
	}

	for _, stmt := range fn.Body {
		a.analyzeStmt(stmt)
	}

	a.currentScope = a.globalScope
	a.currentFunc = nil
}

// analyzeStmt type-checks a statement. It returns nothing; statements never
// yield a type.
func (a *Analyzer) analyzeStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Assignment:
		targetType := a.lvalueType(s.Target)
		sourceType := a.exprType(s.Source)
		if targetType != nil && sourceType != nil {
			if _, isNull := s.Source.(*NullLit); isNull {
				if !isStruct(targetType) {
					a.addError(s.Line, "null can only be assigned to struct types")
				}
			} else if !typeEquals(targetType, sourceType) {
				a.addError(s.Line, "Type mismatch in assignment: cannot assign %s to %s",
					typeString(sourceType), typeString(targetType))
			}
		}
	case *Block:
		for _, inner := range s.Stmts {
			a.analyzeStmt(inner)
		}
	case *Conditional:
		guardType := a.exprType(s.Guard)
		if guardType != nil && !isBool(guardType) {
			a.addError(s.Line, "if statement guard must be boolean")
		}
		a.analyzeStmt(s.Then)
		a.analyzeStmt(s.Else)
	case *While:
		guardType := a.exprType(s.Guard)
		if guardType == nil || !isBool(guardType) {
			a.addError(s.Line, "while statement guard must be boolean")
		}
		a.analyzeStmt(s.Body)
	case *Delete:
		t := a.exprType(s.Expr)
		if t != nil && !isStruct(t) {
			a.addError(s.Line, "delete requires a struct type")
		}
	case *InvocationStmt:
		a.exprType(s.Call)
	case *Print:
		t := a.exprType(s.Expr)
		if t == nil || !isInt(t) {
			a.addError(s.Line, "print statement requires int argument")
		}
	case *PrintLn:
		t := a.exprType(s.Expr)
		if t == nil || !isInt(t) {
			a.addError(s.Line, "print statement requires int argument")
		}
	case *Return:
		a.analyzeReturn(s)
	case *ReturnEmpty:
		if a.currentFunc != nil {
			if _, void := a.currentFunc.ReturnType.(*VoidReturn); !void {
				a.addError(s.Line, "Function '%s' must return a value of type %s",
					a.currentFunc.Name, returnTypeString(a.currentFunc.ReturnType))
			}
		}
	}
}

func isStruct(t Type) bool { _, ok := t.(*StructType); return ok }

func (a *Analyzer) analyzeReturn(s *Return) {
	if a.currentFunc == nil {
		return
	}
	exprType := a.exprType(s.Expr)

	if _, void := a.currentFunc.ReturnType.(*VoidReturn); void {
		if exprType != nil {
			a.addError(s.Line, "Function '%s' with void return type cannot return a value", a.currentFunc.Name)
		}
		return
	}

	real := a.currentFunc.ReturnType.(*RealReturn)
	if s.Expr == nil {
		a.addError(s.Line, "Function '%s' must return a value of type %s", a.currentFunc.Name, real.Type.String())
		return
	}
	if exprType == nil {
		// The expression's own error has already been reported.
		return
	}

	if _, isNull := s.Expr.(*NullLit); isNull {
		if !isStruct(real.Type) {
			a.addError(s.Line, "Cannot return null for non-struct type %s", real.Type.String())
		}
		return
	}
	if !typeEquals(real.Type, exprType) {
		a.addError(s.Line, "Return type mismatch: expected %s, got %s", real.Type.String(), typeString(exprType))
	}
}

// exprType type-checks expr and returns its type, or nil if it could not
// be determined (an already-reported error, or a cascading failure from
// one). Mirrors static_semantic_ast_visitor.py's Optional[TypeInfo] returns.
func (a *Analyzer) exprType(expr Expr) Type {
	switch e := expr.(type) {
	case *IntegerLit:
		return &IntType{}
	case *TrueLit:
		return &BoolType{}
	case *FalseLit:
		return &BoolType{}
	case *NullLit:
		return &NullType{}
	case *ReadExpr:
		return &IntType{}
	case *Ident:
		entry := a.currentScope.Lookup(e.Name)
		if entry == nil {
			a.addError(e.Line, "Variable '%s' not declared", e.Name)
			return nil
		}
		v, ok := entry.(*VariableEntry)
		if !ok {
			a.addError(e.Line, "'%s' is not a variable", e.Name)
			return nil
		}
		return v.Type
	case *Dot:
		return a.dotType(e.Left, e.Field, e.Line)
	case *New:
		if _, ok := a.structs.Lookup(e.Struct); !ok {
			a.addError(e.Line, "Struct type '%s' not defined", e.Struct)
			return nil
		}
		return &StructType{Name: e.Struct}
	case *Invocation:
		return a.invocationType(e)
	case *Unary:
		return a.unaryType(e)
	case *Binary:
		return a.binaryType(e)
	}
	return nil
}

func (a *Analyzer) dotType(left Expr, field string, line int) Type {
	leftType := a.exprType(left)
	if leftType == nil {
		return nil
	}
	st, ok := leftType.(*StructType)
	if !ok {
		a.addError(line, "Dot operator requires struct type")
		return nil
	}
	def, ok := a.structs.Lookup(st.Name)
	if !ok {
		return nil
	}
	f, ok := def.Fields[field]
	if !ok {
		a.addError(line, "Struct '%s' has no field '%s'", st.Name, field)
		return nil
	}
	return f.Type
}

func (a *Analyzer) invocationType(e *Invocation) Type {
	entry := a.globalScope.Lookup(e.Name)
	if entry == nil {
		a.addError(e.Line, "Function '%s' not declared", e.Name)
		return nil
	}
	fn, ok := entry.(*FunctionEntry)
	if !ok {
		a.addError(e.Line, "'%s' is not a function", e.Name)
		return nil
	}

	resultType := returnTypeToType(fn.ReturnType)

	if len(e.Args) != len(fn.Params) {
		a.addError(e.Line, "Function '%s' expects %d arguments, got %d", e.Name, len(fn.Params), len(e.Args))
		return resultType
	}

	for i, arg := range e.Args {
		param := fn.Params[i]
		argType := a.exprType(arg)
		if argType == nil {
			continue
		}
		if typeEquals(argType, param.Type) {
			continue
		}
		if _, isNull := arg.(*NullLit); isNull && isStruct(param.Type) {
			continue
		}
		a.addError(e.Line, "Argument %d to '%s': expected %s, got %s", i+1, e.Name, typeString(param.Type), typeString(argType))
	}
	return resultType
}

// returnTypeToType converts a function's ReturnType into the Type an
// invocation expression evaluates to; void functions have no usable value,
// represented here as nil so a void call used as a value type-checks as
// "unknown" rather than any declared type.
func returnTypeToType(rt ReturnType) Type {
	if real, ok := rt.(*RealReturn); ok {
		return real.Type
	}
	return nil
}

func (a *Analyzer) unaryType(e *Unary) Type {
	operandType := a.exprType(e.Operand)
	if operandType == nil {
		return nil
	}
	switch e.Op {
	case UnaryNot:
		if !isBool(operandType) {
			a.addError(e.Line, "! operator requires boolean operand")
		}
		return &BoolType{}
	case UnaryMinus:
		if !isInt(operandType) {
			a.addError(e.Line, "- operator requires int operand")
		}
		return &IntType{}
	}
	return nil
}

func (a *Analyzer) binaryType(e *Binary) Type {
	leftType := a.exprType(e.Left)
	rightType := a.exprType(e.Right)
	if leftType == nil || rightType == nil {
		return nil
	}

	switch e.Op {
	case OpMul, OpDiv, OpAdd, OpSub:
		if !isInt(leftType) || !isInt(rightType) {
			a.addError(e.Line, "Operator %s requires int operands", e.Op)
		}
		return &IntType{}

	case OpLt, OpLe, OpGt, OpGe:
		if !isInt(leftType) || !isInt(rightType) {
			a.addError(e.Line, "Operator %s requires int operands", e.Op)
			return nil
		}
		return &BoolType{}

	case OpEq, OpNe:
		leftIsInt, rightIsInt := isInt(leftType), isInt(rightType)
		leftIsStructLike, rightIsStructLike := isStructOrNull(leftType), isStructOrNull(rightType)
		switch {
		case leftIsInt && rightIsInt:
		case leftIsStructLike && rightIsStructLike:
		default:
			a.addError(e.Line, "Operator %s requires matching types (int or struct)", e.Op)
		}
		return &BoolType{}

	case OpAnd, OpOr:
		if !isBool(leftType) || !isBool(rightType) {
			a.addError(e.Line, "Operator %s requires boolean operands", e.Op)
		}
		return &BoolType{}
	}
	return nil
}

func (a *Analyzer) lvalueType(lv LValue) Type {
	switch l := lv.(type) {
	case *LValueID:
		entry := a.currentScope.Lookup(l.Name)
		if entry == nil {
			a.addError(l.Line, "Variable '%s' not declared", l.Name)
			return nil
		}
		v, ok := entry.(*VariableEntry)
		if !ok {
			a.addError(l.Line, "'%s' is not a variable", l.Name)
			return nil
		}
		return v.Type
	case *LValueDot:
		return a.lvalueDotType(l)
	}
	return nil
}

func (a *Analyzer) lvalueDotType(l *LValueDot) Type {
	leftType := a.lvalueType(l.Left)
	if leftType == nil {
		return nil
	}
	st, ok := leftType.(*StructType)
	if !ok {
		a.addError(l.Line, "Dot operator requires struct type")
		return nil
	}
	def, ok := a.structs.Lookup(st.Name)
	if !ok {
		return nil
	}
	f, ok := def.Fields[l.Field]
	if !ok {
		a.addError(l.Line, "Struct '%s' has no field '%s'", st.Name, l.Field)
		return nil
	}
	return f.Type
}
