package docxcod

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotDirective is returned when placeholder text does not start with a
// structural directive prefix. Callers treat it as "leave the node alone".
var ErrNotDirective = errors.New("not a structural directive")

var (
	errInvalidTemplate = errors.New("invalid or nil template")
	errTemplateClosed  = errors.New("template is closed")
)

// ParseError represents an error during template parsing
type ParseError struct {
	Message  string
	Token    string
	Position int
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("parse error at position %d near '%s': %s", e.Position, e.Token, e.Message)
	}
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Message)
}

// NewParseError creates a new parse error
func NewParseError(message, token string, position int) error {
	return &ParseError{
		Message:  message,
		Token:    token,
		Position: position,
	}
}

// EvaluationError represents an error during expression evaluation
type EvaluationError struct {
	Expression string
	Cause      error
}

func (e *EvaluationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("evaluation error for expression '%s': %v", e.Expression, e.Cause)
	}
	return fmt.Sprintf("evaluation error for expression '%s'", e.Expression)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// NewEvaluationError creates a new evaluation error
func NewEvaluationError(expression string, cause error) error {
	return &EvaluationError{
		Expression: expression,
		Cause:      cause,
	}
}

// FunctionError represents an error in a template function call
type FunctionError struct {
	Function string
	Args     []interface{}
	Message  string
}

func (e *FunctionError) Error() string {
	argsStr := make([]string, len(e.Args))
	for i, arg := range e.Args {
		argsStr[i] = fmt.Sprintf("%v", arg)
	}
	return fmt.Sprintf("function error in '%s(%s)': %s", e.Function, strings.Join(argsStr, ", "), e.Message)
}

// NewFunctionError creates a new function error
func NewFunctionError(function string, args []interface{}, message string) error {
	return &FunctionError{
		Function: function,
		Args:     args,
		Message:  message,
	}
}

// DocumentError represents an I/O or parse failure on a package part
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("document error during %s of '%s': %v", e.Operation, e.Path, e.Cause)
	} else if e.Path != "" {
		return fmt.Sprintf("document error during %s of '%s'", e.Operation, e.Path)
	} else if e.Cause != nil {
		return fmt.Sprintf("document error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("document error during %s", e.Operation)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error
func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// UnsupportedDocumentError reports a document shape the chart and spreadsheet
// passes cannot handle: a formula outside Sheet1, a missing cache or point
// prototype, an unresolvable externalData target. It aborts the current
// duplication only.
type UnsupportedDocumentError struct {
	Part   string
	Reason string
}

func (e *UnsupportedDocumentError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("unsupported document in '%s': %s", e.Part, e.Reason)
	}
	return fmt.Sprintf("unsupported document: %s", e.Reason)
}

// NewUnsupportedDocumentError creates a new unsupported-shape error
func NewUnsupportedDocumentError(part, format string, args ...interface{}) error {
	return &UnsupportedDocumentError{
		Part:   part,
		Reason: fmt.Sprintf(format, args...),
	}
}

// FieldEncodingError reports a merge field whose markup matches neither the
// simple nor the begin/separate/end encoding.
type FieldEncodingError struct {
	Directive string
	Path      string
	Reason    string
}

func (e *FieldEncodingError) Error() string {
	return fmt.Sprintf("malformed field '%s' at %s: %s", e.Directive, e.Path, e.Reason)
}

// MultiError collects multiple errors
type MultiError struct {
	errors []error
}

// NewMultiError creates a new multi-error collector
func NewMultiError() *MultiError {
	return &MultiError{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collection (ignores nil errors)
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

// Len returns the number of errors
func (m *MultiError) Len() int {
	return len(m.errors)
}

// Errors returns the collected errors
func (m *MultiError) Errors() []error {
	return m.errors
}

// Err returns the multi-error or nil if empty
func (m *MultiError) Err() error {
	if len(m.errors) == 0 {
		return nil
	}
	if len(m.errors) == 1 {
		return m.errors[0]
	}
	return m
}

func (m *MultiError) Error() string {
	if len(m.errors) == 0 {
		return "no errors"
	}

	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d errors occurred:", len(m.errors)))
	for i, err := range m.errors {
		parts = append(parts, fmt.Sprintf("  [%d] %v", i+1, err))
	}
	return strings.Join(parts, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.errors
}

// ContextError adds context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var contextParts []string
	for _, k := range keys {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}

	if len(contextParts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(contextParts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// RecoverError converts a panic recovery value to an error
func RecoverError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic recovered: %w", v)
	case string:
		return fmt.Errorf("panic recovered: %s", v)
	default:
		return fmt.Errorf("panic recovered: %v", v)
	}
}

// IsUnsupportedDocument reports whether err carries an UnsupportedDocumentError
func IsUnsupportedDocument(err error) bool {
	var target *UnsupportedDocumentError
	return errors.As(err, &target)
}

// IsDocumentError reports whether err carries a DocumentError
func IsDocumentError(err error) bool {
	var target *DocumentError
	return errors.As(err, &target)
}

// IsParseError reports whether err carries a ParseError
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}
