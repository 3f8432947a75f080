package schema

import (
	"fmt"
	"slices"
	"sort"
)

// ValidationSeverity indicates whether an issue blocks evaluation.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is one finding about a graph or a payload. NodeIDs names
// the graph nodes the finding is about, so a canvas can highlight them.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
	NodeIDs  []string           `json:"node_ids,omitempty"`
}

// ValidationResult collects the issues of one validation pass. Errors make
// the result invalid; warnings describe behaviour the evaluator tolerates.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError records a blocking issue at path, optionally tied to nodes.
func (r *ValidationResult) AddError(path, code, message string, nodeIDs ...string) {
	r.Errors = append(r.Errors, newIssue(path, code, message, SeverityError, nodeIDs))
}

// AddWarning records a non-blocking issue at path, optionally tied to nodes.
func (r *ValidationResult) AddWarning(path, code, message string, nodeIDs ...string) {
	r.Warnings = append(r.Warnings, newIssue(path, code, message, SeverityWarning, nodeIDs))
}

func newIssue(path, code, message string, sev ValidationSeverity, nodeIDs []string) ValidationIssue {
	issue := ValidationIssue{Path: path, Code: code, Message: message, Severity: sev}
	if len(nodeIDs) > 0 {
		issue.NodeIDs = slices.Clone(nodeIDs)
	}
	return issue
}

// Merge appends other's issues. A nil other is ignored.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ForNode returns every issue, errors first, that names the node id.
func (r *ValidationResult) ForNode(id string) []ValidationIssue {
	var out []ValidationIssue
	for _, list := range [][]ValidationIssue{r.Errors, r.Warnings} {
		for _, issue := range list {
			if slices.Contains(issue.NodeIDs, id) {
				out = append(out, issue)
			}
		}
	}
	return out
}

// NodeIDs returns the sorted, distinct node IDs named by errors.
func (r *ValidationResult) NodeIDs() []string {
	seen := map[string]bool{}
	var ids []string
	for _, issue := range r.Errors {
		for _, id := range issue.NodeIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// ToError converts an invalid result to a *BonsaiError and returns nil for
// a valid one. The error carries the shared code when every error agrees
// on one (a cyclic graph yields CYCLE_DETECTED), VALIDATION_ERROR otherwise.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	code := r.Errors[0].Code
	for _, issue := range r.Errors[1:] {
		if issue.Code != code {
			code = ErrCodeValidation
			break
		}
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("graph has %d errors", len(r.Errors))
	}

	details := map[string]any{
		"errors":   r.Errors,
		"warnings": r.Warnings,
	}
	err := NewError(code, msg)
	if ids := r.NodeIDs(); len(ids) > 0 {
		details["node_ids"] = ids
		if len(ids) == 1 {
			err.WithNode(ids[0])
		}
	}
	return err.WithDetails(details)
}
