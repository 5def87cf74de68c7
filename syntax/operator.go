package syntax

// An Operator describes the operation performed by a unary or
// binary expression. Operators are attached to expressions by the
// parser and carried through to dynamic operation descriptors.
type Operator uint8

const (
	IllegalOp Operator = iota
	Add
	Subtract
	Multiply
	Divide
	Mod
	LogicalAnd
	LogicalOr
	Xor
	BitwiseAnd
	BitwiseOr
	Equal
	NotEqual
	Greater
	Less
	GreaterOrEqual
	LessOrEqual
	Assign
	Not
	Negate
	Index
	MemberAccess
)

var operatorNames = [...]string{
	IllegalOp:      "illegal",
	Add:            "+",
	Subtract:       "-",
	Multiply:       "*",
	Divide:         "/",
	Mod:            "%",
	LogicalAnd:     "&&",
	LogicalOr:      "||",
	Xor:            "^",
	BitwiseAnd:     "&",
	BitwiseOr:      "|",
	Equal:          "==",
	NotEqual:       "!=",
	Greater:        ">",
	Less:           "<",
	GreaterOrEqual: ">=",
	LessOrEqual:    "<=",
	Assign:         "=",
	Not:            "!",
	Negate:         "-",
	Index:          "[]",
	MemberAccess:   ".",
}

func (op Operator) String() string { return operatorNames[op] }

// binaryOps maps each binary operator token to its Operator.
var binaryOps = map[Token]Operator{
	PLUS:       Add,
	MINUS:      Subtract,
	STAR:       Multiply,
	SLASH:      Divide,
	PERCENT:    Mod,
	ANDAND:     LogicalAnd,
	OROR:       LogicalOr,
	CIRCUMFLEX: Xor,
	AMP:        BitwiseAnd,
	PIPE:       BitwiseOr,
	EQL:        Equal,
	NEQ:        NotEqual,
	GT:         Greater,
	LT:         Less,
	GE:         GreaterOrEqual,
	LE:         LessOrEqual,
}
