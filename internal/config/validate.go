package config

import (
	"fmt"
	"strings"
)

// ValidationResult holds config validation results.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// ValidateDetailed performs thorough config validation with suggestions.
// Unlike Validate it keeps going after the first problem and also reports
// settings that are legal but probably not what the user intended.
func (c *Config) ValidateDetailed() *ValidationResult {
	result := &ValidationResult{}

	if err := c.Validate(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	if c.Input.Document == "" && len(c.Input.Packages) == 0 {
		result.Warnings = append(result.Warnings,
			"input: neither document nor packages is set — the input must be given on the command line")
	}
	for _, pattern := range c.Input.Packages {
		if strings.HasSuffix(pattern, ".go") {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("input.packages: pattern %q looks like a file — package patterns are expected, e.g. %q", pattern, "./..."))
		}
	}

	if c.Transforms.Flatten.Enabled && !c.Transforms.Inline.Enabled {
		result.Warnings = append(result.Warnings,
			"transforms: flatten is enabled without inline — reference chains inside flattened objects will stay unresolved")
	}
	if c.Transforms.Flatten.Enabled && c.Transforms.Flatten.MaxProps > 0 && c.Transforms.Flatten.MaxProps < 4 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("transforms.flatten.maxProps: %d is very low — most nested objects will be skipped", c.Transforms.Flatten.MaxProps))
	}

	if c.QueryShape.MaxDepth > 0 && c.QueryShape.MaxDepth < 2 {
		result.Warnings = append(result.Warnings,
			"queryShape.maxDepth: depth 1 only resolves handlers that query directly — call chains through services will degrade")
	}

	return result
}

// IsValid returns true if there are no errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}
