package grammar

import (
	"errors"
	"fmt"
)

// Configuration defect kinds. A grammar carrying any of them is rejected at
// registration; errors.Is matches a ConfigError against its kind.
var (
	ErrEmptyComposite     = errors.New("composite element has no children")
	ErrUndefinedBranch    = errors.New("parse branch is not declared")
	ErrUnknownToken       = errors.New("token type is not registered")
	ErrUnresolvedElement  = errors.New("element reference cannot be resolved")
	ErrDuplicateElement   = errors.New("element defined twice")
	ErrEmptyFirstSet      = errors.New("reachable mandatory element can never match a token")
	ErrNoEmbeddedDialect  = errors.New("chameleon has no embedded dialect")
	ErrChameleonBoundary  = errors.New("chameleon has no opening boundary token")
	ErrInvalidDefinition  = errors.New("invalid grammar definition")
	ErrRootNotDefined     = errors.New("grammar root is not defined")
	ErrEmbeddedUnresolved = errors.New("embedded dialect is not registered")
)

// ConfigError reports a malformed grammar description.
type ConfigError struct {
	Grammar string
	Element string
	Kind    error
	Detail  string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("grammar %s", e.Grammar)
	if e.Element != "" {
		msg += fmt.Sprintf(", element %q", e.Element)
	}
	msg += ": " + e.Kind.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap exposes the defect kind to errors.Is.
func (e *ConfigError) Unwrap() error { return e.Kind }

func configErr(grammar, element string, kind error, format string, args ...any) *ConfigError {
	detail := ""
	if format != "" {
		detail = fmt.Sprintf(format, args...)
	}
	return &ConfigError{Grammar: grammar, Element: element, Kind: kind, Detail: detail}
}
