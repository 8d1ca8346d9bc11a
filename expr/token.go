package expr

import (
	"fmt"
	"strings"

	"github.com/therealspring/carbonscen/errs"
)

// Operator identifies one of the three binary operators in the stream.
type Operator uint8

const (
	OpAdd      Operator = 0x1 // OpAdd is elementwise addition.
	OpMultiply Operator = 0x2 // OpMultiply is elementwise multiplication.
	OpPower    Operator = 0x3 // OpPower raises the left operand to the right operand.
)

func (o Operator) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpMultiply:
		return "*"
	case OpPower:
		return "^"
	default:
		return "?"
	}
}

// TokenKind tags the variant held by a Token.
type TokenKind uint8

const (
	KindNumber   TokenKind = 0x1 // KindNumber is a numeric literal operand.
	KindSymbol   TokenKind = 0x2 // KindSymbol references a predictor grid by name.
	KindOperator TokenKind = 0x3 // KindOperator consumes two operands and pushes one result.
)

// Token is one element of a postfix stream: a number, a symbol, or an
// operator. The tagged-union layout keeps operand/operator dispatch exhaustive
// at construction time rather than discovered during evaluation.
type Token struct {
	Symbol string
	Number float64
	Op     Operator
	Kind   TokenKind
}

// NumberToken returns a numeric literal token.
func NumberToken(v float64) Token {
	return Token{Kind: KindNumber, Number: v}
}

// SymbolToken returns a predictor reference token.
func SymbolToken(name string) Token {
	return Token{Kind: KindSymbol, Symbol: name}
}

// OperatorToken returns an operator token.
func OperatorToken(op Operator) Token {
	return Token{Kind: KindOperator, Op: op}
}

func (t Token) String() string {
	switch t.Kind {
	case KindNumber:
		return fmt.Sprintf("%g", t.Number)
	case KindSymbol:
		return t.Symbol
	case KindOperator:
		return t.Op.String()
	default:
		return "<invalid>"
	}
}

// Stream is a postfix token sequence. Order is evaluation order: an operator
// consumes the two most recently pushed operands and pushes one result.
type Stream []Token

// Symbols returns the distinct symbol names referenced by the stream in
// first-seen order. This order is the slot-index contract: symbol i's tile
// array occupies slot i during evaluation.
func (s Stream) Symbols() []string {
	var names []string
	seen := make(map[string]struct{})

	for _, tok := range s {
		if tok.Kind != KindSymbol {
			continue
		}
		if _, ok := seen[tok.Symbol]; ok {
			continue
		}
		seen[tok.Symbol] = struct{}{}
		names = append(names, tok.Symbol)
	}

	return names
}

// Validate simulates stack depth over the stream and reports whether it
// reduces to exactly one value.
//
// An imbalanced stream is a construction defect: Compile never emits one, so
// a failure here means the stream was assembled or modified by hand.
func (s Stream) Validate() error {
	depth := 0
	for i, tok := range s {
		switch tok.Kind {
		case KindNumber, KindSymbol:
			depth++
		case KindOperator:
			if depth < 2 {
				return fmt.Errorf("%w: operator %q at position %d with %d operand(s)",
					errs.ErrImbalancedStream, tok.Op, i, depth)
			}
			depth--
		default:
			return fmt.Errorf("%w: invalid token kind at position %d", errs.ErrImbalancedStream, i)
		}
	}

	if depth != 1 {
		return fmt.Errorf("%w: %d values remain after evaluation", errs.ErrImbalancedStream, depth)
	}

	return nil
}

func (s Stream) String() string {
	parts := make([]string, len(s))
	for i, tok := range s {
		parts[i] = tok.String()
	}

	return strings.Join(parts, " ")
}
