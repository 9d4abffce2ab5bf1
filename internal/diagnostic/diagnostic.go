package diagnostic

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Category classifies diagnostics for filtering.
type Category string

const (
	// CategoryStructural marks graph or declaration defects that abort the
	// compilation: dangling references, self-containing types, conflicting
	// argument bindings.
	CategoryStructural Category = "structural"
	// CategoryDegradedDetection marks analyses that fell back to a declared
	// type because a shape could not be traced statically.
	CategoryDegradedDetection Category = "degraded-detection"
	// CategoryTransformSkip marks nodes a transform declined to touch
	// (cyclic, over threshold, shared).
	CategoryTransformSkip Category = "transform-skip"
	// CategoryInputInvalid marks malformed interchange documents or scan
	// input rejected before graph construction.
	CategoryInputInvalid     Category = "input-invalid"
	CategoryConstraintInvalid Category = "constraint-invalid"
	CategoryConfigInvalid     Category = "config-invalid"
)

// Diagnostic represents a structured diagnostic message.
type Diagnostic struct {
	Severity  Severity
	Category  Category
	Node      string // type graph node id ("" = not node-scoped)
	Operation string // operation id ("" = not operation-scoped)
	File      string // source file path (scanner input only)
	Line      int    // 1-based line number (0 = unknown)
	Message   string
	Hint      string // optional suggestion for fixing the issue
}

// String formats the diagnostic for display.
func (d Diagnostic) String() string {
	var sb strings.Builder

	switch {
	case d.File != "":
		sb.WriteString(d.File)
		if d.Line > 0 {
			sb.WriteString(fmt.Sprintf(":%d", d.Line))
		}
		sb.WriteString(" - ")
	case d.Operation != "":
		sb.WriteString("operation ")
		sb.WriteString(d.Operation)
		sb.WriteString(" - ")
	case d.Node != "":
		sb.WriteString("node ")
		sb.WriteString(d.Node)
		sb.WriteString(" - ")
	}

	sb.WriteString(d.Severity.String())
	sb.WriteString(": ")

	if d.Category != "" {
		sb.WriteString("[")
		sb.WriteString(string(d.Category))
		sb.WriteString("] ")
	}

	sb.WriteString(d.Message)

	if d.Hint != "" {
		sb.WriteString("\n  hint: ")
		sb.WriteString(d.Hint)
	}

	return sb.String()
}

// StructuralError is the fatal half of the error taxonomy: a defect in the
// type graph or the endpoint declarations that makes the output meaningless.
// Compilation halts on the first one. Everything softer (undetected query
// shapes, skipped transforms) is collected as diagnostics instead.
type StructuralError struct {
	Node      string // offending node id ("" when operation-scoped)
	Operation string // offending operation id ("" when node-scoped)
	Message   string
}

func (e *StructuralError) Error() string {
	switch {
	case e.Operation != "":
		return fmt.Sprintf("structural error in operation %s: %s", e.Operation, e.Message)
	case e.Node != "":
		return fmt.Sprintf("structural error at node %s: %s", e.Node, e.Message)
	default:
		return "structural error: " + e.Message
	}
}

// NodeError builds a StructuralError scoped to a graph node.
func NodeError(node string, format string, args ...any) *StructuralError {
	return &StructuralError{Node: node, Message: fmt.Sprintf(format, args...)}
}

// OperationError builds a StructuralError scoped to an endpoint operation.
func OperationError(operation string, format string, args ...any) *StructuralError {
	return &StructuralError{Operation: operation, Message: fmt.Sprintf(format, args...)}
}

// Collector collects diagnostics during compilation.
type Collector struct {
	diagnostics []Diagnostic
	strict      bool // if true, warnings become errors
	quiet       bool // if true, suppress warnings and infos
}

// NewCollector creates a new diagnostic collector.
func NewCollector(strict, quiet bool) *Collector {
	return &Collector{
		strict: strict,
		quiet:  quiet,
	}
}

// Warn adds a warning diagnostic.
func (c *Collector) Warn(category Category, message string) {
	if c == nil || c.quiet {
		return
	}
	sev := SeverityWarning
	if c.strict {
		sev = SeverityError
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: sev,
		Category: category,
		Message:  message,
	})
}

// WarnNode adds a warning scoped to a graph node.
func (c *Collector) WarnNode(category Category, node, message string) {
	if c == nil || c.quiet {
		return
	}
	sev := SeverityWarning
	if c.strict {
		sev = SeverityError
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: sev,
		Category: category,
		Node:     node,
		Message:  message,
	})
}

// WarnOperation adds a warning scoped to an operation.
func (c *Collector) WarnOperation(category Category, operation, message string) {
	if c == nil || c.quiet {
		return
	}
	sev := SeverityWarning
	if c.strict {
		sev = SeverityError
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity:  sev,
		Category:  category,
		Operation: operation,
		Message:   message,
	})
}

// WarnFile adds a warning scoped to a source location.
func (c *Collector) WarnFile(category Category, file string, line int, message string) {
	if c == nil || c.quiet {
		return
	}
	sev := SeverityWarning
	if c.strict {
		sev = SeverityError
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: sev,
		Category: category,
		File:     file,
		Line:     line,
		Message:  message,
	})
}

// Error adds an error diagnostic.
func (c *Collector) Error(category Category, message string) {
	if c == nil {
		return
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: SeverityError,
		Category: category,
		Message:  message,
	})
}

// Info adds an informational diagnostic.
func (c *Collector) Info(category Category, message string) {
	if c == nil || c.quiet {
		return
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: SeverityInfo,
		Category: category,
		Message:  message,
	})
}

// Diagnostics returns all collected diagnostics.
func (c *Collector) Diagnostics() []Diagnostic {
	if c == nil {
		return nil
	}
	return c.diagnostics
}

// HasErrors returns true if any error-level diagnostics exist.
func (c *Collector) HasErrors() bool {
	if c == nil {
		return false
	}
	for _, d := range c.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error diagnostics.
func (c *Collector) ErrorCount() int {
	if c == nil {
		return 0
	}
	count := 0
	for _, d := range c.diagnostics {
		if d.Severity == SeverityError {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning diagnostics.
func (c *Collector) WarningCount() int {
	if c == nil {
		return 0
	}
	count := 0
	for _, d := range c.diagnostics {
		if d.Severity == SeverityWarning {
			count++
		}
	}
	return count
}

// CountByCategory returns the number of diagnostics in a category.
func (c *Collector) CountByCategory(category Category) int {
	if c == nil {
		return 0
	}
	count := 0
	for _, d := range c.diagnostics {
		if d.Category == category {
			count++
		}
	}
	return count
}

// FormatAll formats all diagnostics as a multi-line string.
func (c *Collector) FormatAll() string {
	if c == nil || len(c.diagnostics) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range c.diagnostics {
		sb.WriteString(d.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Summary returns a summary line like "2 warning(s), 1 error(s)".
func (c *Collector) Summary() string {
	if c == nil {
		return ""
	}
	warnings := c.WarningCount()
	errors := c.ErrorCount()

	parts := []string{}
	if errors > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", errors))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", warnings))
	}
	if len(parts) == 0 {
		return "no issues"
	}
	return strings.Join(parts, ", ")
}
