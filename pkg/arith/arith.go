// Package arith evaluates plain numeric expressions with a restricted
// grammar: + - * / ** and parentheses. Anything else fails to parse, which
// the query router treats as "not arithmetic" rather than an error.
package arith

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Eval parses and evaluates expr. The second return reports whether the
// input was a well-formed pure numeric expression.
func Eval(expr string) (float64, bool) {
	p := &parser{input: strings.TrimSpace(expr)}
	if p.input == "" {
		return 0, false
	}
	v, err := p.parseExpr()
	if err != nil || !p.atEnd() {
		return 0, false
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Format renders the result the way a calculator would: integers without a
// trailing ".0", everything else trimmed.
func Format(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', 12, 64)
}

type parser struct {
	input string
	pos   int
}

func (p *parser) atEnd() bool {
	p.skipSpace()
	return p.pos >= len(p.input)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// expr := term (('+'|'-') term)*
func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// term := power (('*'|'/') power)*
// a lone '*' is multiplication, '**' belongs to power and is handled below
func (p *parser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		c := p.peek()
		if c == '*' && !p.lookaheadPower() {
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			left *= right
		} else if c == '/' {
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		} else {
			return left, nil
		}
	}
}

func (p *parser) lookaheadPower() bool {
	p.skipSpace()
	return p.pos+1 < len(p.input) && p.input[p.pos] == '*' && p.input[p.pos+1] == '*'
}

// power := unary ('**' power)?   — right associative
func (p *parser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if p.lookaheadPower() {
		p.pos += 2
		exp, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

// unary := '-'* atom
func (p *parser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

// atom := number | '(' expr ')'
func (p *parser) parseAtom() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing close paren")
		}
		p.pos++
		return v, nil
	}
	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at %d", start)
	}
	return strconv.ParseFloat(p.input[start:p.pos], 64)
}
