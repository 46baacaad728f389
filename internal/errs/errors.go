package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline error.
type Kind string

const (
	// KindXMLNotFound indicates a presentation or include file does not exist.
	KindXMLNotFound Kind = "xml-not-found"
	// KindMalformedXML indicates the XML input could not be parsed or is structurally invalid.
	KindMalformedXML Kind = "malformed-xml"
	// KindMalformedJSON indicates a JSON input (acronym database, template configuration) is invalid.
	KindMalformedJSON Kind = "malformed-json"
	// KindDuplicateAcronym indicates an acronym id was defined twice.
	KindDuplicateAcronym Kind = "duplicate-acronym"
	// KindInvalidBooleanExpression indicates a Boolean formula could not be parsed.
	KindInvalidBooleanExpression Kind = "invalid-boolean-expression"
	// KindInvalidAgenda indicates an agenda line does not follow the agenda grammar.
	KindInvalidAgenda Kind = "invalid-agenda"
	// KindUnresolvableAgenda indicates agenda times are underspecified or contradictory.
	KindUnresolvableAgenda Kind = "unresolvable-agenda"
	// KindNoAgenda indicates an agenda was requested but none is defined.
	KindNoAgenda Kind = "no-agenda"
	// KindIllegalStyle indicates an invalid template style configuration.
	KindIllegalStyle Kind = "illegal-style"
	// KindUnknownSlideType indicates there is no template for a slide type.
	KindUnknownSlideType Kind = "unknown-slide-type"
	// KindUnknownParameter indicates an unrecognized parameter.
	KindUnknownParameter Kind = "unknown-parameter"
	// KindMissingParameter indicates a required parameter or attribute is missing.
	KindMissingParameter Kind = "missing-parameter"

	// KindInvalidTeX indicates the TeX processor rejected a formula.
	KindInvalidTeX Kind = "invalid-tex"
	// KindImageRendering indicates an image could not be rendered.
	KindImageRendering Kind = "image-rendering"
	// KindLexerMissing indicates no syntax highlighter exists for a language.
	KindLexerMissing Kind = "lexer-missing"
	// KindMissingVariable indicates an SVG transformation or substitution references an undefined variable.
	KindMissingVariable Kind = "missing-variable"
	// KindInvalidExpression indicates a substitution expression or format spec could not be evaluated.
	KindInvalidExpression Kind = "invalid-expression"

	// KindConfigConflict indicates conflicting configuration entries.
	KindConfigConflict Kind = "config-conflict"
	// KindMissingOption indicates a required command line option was not given.
	KindMissingOption Kind = "missing-option"

	// KindFileLookup indicates a file could not be found in any search directory.
	KindFileLookup Kind = "file-lookup"
	// KindSubprocessFailed indicates an external tool exited unsuccessfully.
	KindSubprocessFailed Kind = "subprocess-failed"

	// KindDuplicatePauseOrder indicates two pause markers share an order id.
	KindDuplicatePauseOrder Kind = "duplicate-pause-order"
	// KindInfiniteRecursion indicates a variable refers to itself.
	KindInfiniteRecursion Kind = "infinite-recursion"
	// KindTimeSpecification indicates an invalid time specification or schedule.
	KindTimeSpecification Kind = "time-specification"
	// KindCyclicInclude indicates a presentation includes itself.
	KindCyclicInclude Kind = "cyclic-include"
	// KindUndefinedFont indicates an SVG references a font that is not installed.
	KindUndefinedFont Kind = "undefined-font"
	// KindUntrusted indicates a feature requires a trustworthy source.
	KindUntrusted Kind = "untrusted"
)

// Error is a pipeline error with a kind and optional source position.
type Error struct {
	Kind    Kind
	Message string
	File    string
	Line    int
	Column  int
	Slide   int
	Err     error
}

// Error formats the error as a one-line summary.
func (e *Error) Error() string {
	if e == nil {
		return "error <nil>"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Message))
	if e.File != "" {
		b.WriteString(fmt.Sprintf(" in %s", e.File))
		if e.Line > 0 {
			b.WriteString(fmt.Sprintf(":%d", e.Line))
			if e.Column > 0 {
				b.WriteString(fmt.Sprintf(":%d", e.Column))
			}
		}
	}
	if e.Slide > 0 {
		b.WriteString(fmt.Sprintf(" (slide %d)", e.Slide))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf formats a message and builds an Error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithFile attaches a file name to the error.
func (e *Error) WithFile(file string) *Error {
	e.File = file
	return e
}

// WithSlide attaches a slide number to the error.
func (e *Error) WithSlide(slide int) *Error {
	e.Slide = slide
	return e
}

// As extracts the first *Error in the chain.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// IsKind reports whether any *Error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) || e == nil {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// IsUserError reports whether the error stems from bad input rather than a
// failing environment.
func IsUserError(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindSubprocessFailed, KindImageRendering:
		return false
	}
	return true
}
