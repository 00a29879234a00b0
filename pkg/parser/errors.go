package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// SyntaxError is a recovered syntax error. Parsing continues after it; the
// errors of a document are collected, never returned.
type SyntaxError struct {
	Pos      token.Position
	Found    token.Token
	Expected []string
}

func (e *SyntaxError) Error() string {
	found := "end of input"
	if !e.Found.IsEOF() {
		found = fmt.Sprintf("%q", e.Found.Literal)
	}
	msg := fmt.Sprintf("syntax error at line %d, column %d: unexpected %s", e.Pos.Line, e.Pos.Column, found)
	if len(e.Expected) > 0 {
		quoted := make([]string, len(e.Expected))
		for i, x := range e.Expected {
			quoted[i] = strconv.Quote(x)
		}
		msg += ", expected " + strings.Join(quoted, ", ")
	}
	return msg
}
