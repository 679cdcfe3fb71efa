package docxcompose

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrComposerClosed is returned by every composer operation after Save or
// Close has released the session.
var ErrComposerClosed = errors.New("composer is closed")

// TemplateError reports a required template part that is missing or cannot
// be parsed, or a failure to extract the template.
type TemplateError struct {
	Part  string
	Cause error
}

func (e *TemplateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template error in '%s': %v", e.Part, e.Cause)
	}
	return fmt.Sprintf("template error in '%s'", e.Part)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// NewTemplateError creates a new template error
func NewTemplateError(part string, cause error) error {
	return &TemplateError{Part: part, Cause: cause}
}

// StyleNotFoundError is returned when a style name cannot be resolved
// against the template.
type StyleNotFoundError struct {
	Name string
}

func (e *StyleNotFoundError) Error() string {
	return fmt.Sprintf("style '%s' not found in template", e.Name)
}

// AssetError reports an image that could not be read, probed or copied.
type AssetError struct {
	Path  string
	Cause error
}

func (e *AssetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("asset error for '%s': %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("asset error for '%s'", e.Path)
}

func (e *AssetError) Unwrap() error {
	return e.Cause
}

// PackagingError reports a missing or broken package-level part such as the
// content type manifest or a relationships part.
type PackagingError struct {
	Part  string
	Cause error
}

func (e *PackagingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("packaging error in '%s': %v", e.Part, e.Cause)
	}
	return fmt.Sprintf("packaging error in '%s'", e.Part)
}

func (e *PackagingError) Unwrap() error {
	return e.Cause
}

// NumberingConflictError is raised when a concrete numbering id would be
// bound to a second, different abstract definition, or defined inside the
// template's id range. Existing is -1 in the second case.
type NumberingConflictError struct {
	NumID     int
	Existing  int
	Requested int
}

func (e *NumberingConflictError) Error() string {
	if e.Existing < 0 {
		return fmt.Sprintf("numbering conflict: num %d is within the template's id range", e.NumID)
	}
	return fmt.Sprintf("numbering conflict: num %d already references abstract %d, cannot rebind to %d",
		e.NumID, e.Existing, e.Requested)
}

// DocumentError represents an error during document operations
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

// ContextError adds context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	var contextParts []string
	for k, v := range e.Context {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(contextParts)

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

// IsTemplateError checks if an error is, or wraps, a template error
func IsTemplateError(err error) bool {
	var target *TemplateError
	return errors.As(err, &target)
}

// IsStyleNotFound checks if an error is, or wraps, a style lookup failure
func IsStyleNotFound(err error) bool {
	var target *StyleNotFoundError
	return errors.As(err, &target)
}

// IsAssetError checks if an error is, or wraps, an asset error
func IsAssetError(err error) bool {
	var target *AssetError
	return errors.As(err, &target)
}

// IsPackagingError checks if an error is, or wraps, a packaging error
func IsPackagingError(err error) bool {
	var target *PackagingError
	return errors.As(err, &target)
}

// IsNumberingConflict checks if an error is, or wraps, a numbering conflict
func IsNumberingConflict(err error) bool {
	var target *NumberingConflictError
	return errors.As(err, &target)
}

// IsDocumentError checks if an error is, or wraps, a document error
func IsDocumentError(err error) bool {
	var target *DocumentError
	return errors.As(err, &target)
}
