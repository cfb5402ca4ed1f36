// Package batch parses and runs YAML/JSON documents of named arithmetic
// expressions.
//
// A batch document looks like:
//
//	description: sample
//	expressions:
//	  - id: area
//	    expression: (2+3)*4
//	    expect: "20"
//	  - 1/3
//
// Entries are either a bare expression or a mapping with an expression and an
// optional id and expected result.
package batch

import (
	"fmt"
	"regexp"
)

// MaxExpressions is the maximum number of entries in a single batch.
const MaxExpressions = 500

// MaxSourceSize is the maximum batch source size in bytes (128 KB).
const MaxSourceSize = 128 * 1024

// MaxIDLength is the maximum length of an entry or batch ID.
const MaxIDLength = 128

var validID = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidID reports whether id can name a batch or a batch entry.
func ValidID(id string) bool {
	return len(id) <= MaxIDLength && validID.MatchString(id)
}

// Batch is a parsed batch document.
type Batch struct {
	Description string
	Entries     []Entry
}

// Entry is a single named expression in a batch.
type Entry struct {
	ID         string
	Expression string
	// Expect is the expected result. It is compared against the formatted
	// result, or against the error tag or message when evaluation fails.
	Expect    string
	HasExpect bool
}

// ParseError represents an error encountered while parsing a batch document.
type ParseError struct {
	Message  string
	Location string // e.g., "entry 3"
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}
