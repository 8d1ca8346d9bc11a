package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/therealspring/carbonscen/errs"
	"github.com/therealspring/carbonscen/internal/options"
)

// InterceptMarker is the reserved expression that marks the intercept row of
// a regression table. The row contributes only its coefficient.
const InterceptMarker = "intercept"

const (
	multiplyDelimiter = "*"
	powerDelimiter    = "^"
)

// Term is one row of a regression table: an expression of predictor names and
// the coefficient it is multiplied by.
type Term struct {
	// Expression is the raw product expression ("a*b^2"), or InterceptMarker.
	Expression string
	// Coefficient is the multiplier for the expression's product.
	Coefficient float64
}

// compileConfig holds compilation settings threaded in via options.
type compileConfig struct {
	baseName   string
	targetName string
}

// CompileOption is a functional option for Compile.
type CompileOption = options.Option[*compileConfig]

// WithSubstitution rewrites every factor whose name starts with base so that
// the base prefix is replaced by target, preserving the rest of the name.
//
// Regression tables name convolution predictors as [base]_[mask]_gs[size];
// substitution re-targets the whole table at a structurally analogous
// predictor family ("canopy_forest_gs30" from "conv_forest_gs30") without
// editing the table itself.
func WithSubstitution(base, target string) CompileOption {
	return options.NoError(func(cfg *compileConfig) {
		cfg.baseName = base
		cfg.targetName = target
	})
}

// Compile turns an ordered term list into a single postfix Stream that sums
// every term in table order.
//
// Per term the stream carries the coefficient, the factors, one Multiply per
// factor (folding the running product into the coefficient), and, for every
// term after the first, one Add folding the term into the running sum. The
// intercept row pushes only its coefficient but still anchors the sum: terms
// after it are added, never multiplied, into the whole expression.
//
// Returns:
//   - Stream: The compiled postfix stream.
//   - error: errs.ErrNoTerms, errs.ErrEmptyFactor, or errs.ErrInvalidExponent
//     on a malformed table; all are construction-time fatal.
func Compile(terms []Term, opts ...CompileOption) (Stream, error) {
	cfg := &compileConfig{}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if len(terms) == 0 {
		return nil, errs.ErrNoTerms
	}

	var stream Stream
	firstTerm := true

	for i, term := range terms {
		if term.Expression == InterceptMarker {
			stream = append(stream, NumberToken(term.Coefficient))
		} else {
			var err error
			stream, err = appendTerm(stream, term, cfg)
			if err != nil {
				return nil, fmt.Errorf("term %d (%q): %w", i, term.Expression, err)
			}
		}

		// The first emitted term has nothing to fold into; every later term
		// is added to the running sum.
		if firstTerm {
			firstTerm = false
		} else {
			stream = append(stream, OperatorToken(OpAdd))
		}
	}

	if err := stream.Validate(); err != nil {
		return nil, err
	}

	return stream, nil
}

// appendTerm emits coefficient, factors, and one Multiply per factor.
func appendTerm(stream Stream, term Term, cfg *compileConfig) (Stream, error) {
	stream = append(stream, NumberToken(term.Coefficient))

	for _, factor := range strings.Split(term.Expression, multiplyDelimiter) {
		if factor == "" {
			return nil, errs.ErrEmptyFactor
		}

		factor = cfg.substitute(factor)

		if base, exponent, found := strings.Cut(factor, powerDelimiter); found {
			if base == "" {
				return nil, errs.ErrEmptyFactor
			}
			exp, err := strconv.Atoi(exponent)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", errs.ErrInvalidExponent, exponent)
			}
			stream = append(stream,
				SymbolToken(base),
				NumberToken(float64(exp)),
				OperatorToken(OpPower),
			)
		} else {
			stream = append(stream, SymbolToken(factor))
		}

		stream = append(stream, OperatorToken(OpMultiply))
	}

	return stream, nil
}

// substitute applies the base → target prefix rewrite to a single factor.
// Substitution happens before exponent splitting, matching the table format
// where the exponent trails the full predictor name.
func (cfg *compileConfig) substitute(factor string) string {
	if cfg.baseName == "" || !strings.HasPrefix(factor, cfg.baseName) {
		return factor
	}

	return cfg.targetName + factor[len(cfg.baseName):]
}
