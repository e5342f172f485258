// Package knowledge holds the FAQ knowledge base: categorized question
// records loaded from a CSV workbook, published as immutable snapshots.
package knowledge

import "strings"

// Category identifies one sheet of the knowledge workbook.
type Category int

const (
	// General records carry a single shared answer column.
	General Category = iota
	// ByTerm records carry one answer column per academic term.
	ByTerm
	// BySemester records carry one answer column per semester type.
	BySemester
)

// SearchOrder is the fixed order in which categories are consulted
// when matching an incoming question.
var SearchOrder = [...]Category{General, ByTerm, BySemester}

// String returns the snake_case name used in metrics labels and logs.
func (c Category) String() string {
	switch c {
	case General:
		return "general"
	case ByTerm:
		return "by_term"
	case BySemester:
		return "by_semester"
	default:
		return "unknown"
	}
}

// FileName returns the workbook file that backs this category.
func (c Category) FileName() string {
	switch c {
	case General:
		return "general.csv"
	case ByTerm:
		return "by_term.csv"
	case BySemester:
		return "by_semester.csv"
	default:
		return ""
	}
}

// Record is one row of a workbook sheet: the canonical question plus
// every answer column, keyed by the header names of the sheet.
type Record map[string]string

// Question returns the canonical question text under the given column,
// with surrounding whitespace trimmed.
func (r Record) Question(questionColumn string) string {
	return strings.TrimSpace(r[questionColumn])
}

// Answer returns the answer under the given column and whether a
// non-empty value exists.
func (r Record) Answer(column string) (string, bool) {
	v := strings.TrimSpace(r[column])
	return v, v != ""
}
