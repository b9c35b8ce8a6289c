// Package fixedwidth parses lines of fixed column-offset government extract
// files into typed records.
package fixedwidth

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the type a field converts to.
type Kind int

const (
	String Kind = iota
	Int
	Float
)

// Field is one column range. Offsets are zero-based and half-open.
type Field struct {
	Name     string
	Start    int
	End      int
	Kind     Kind
	Required bool
}

// Spec is an ordered list of fields applied to a single line.
type Spec []Field

// FormatError reports a required numeric field that did not parse.
type FormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("field %s: invalid value %q: %v", e.Field, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Record holds the converted values of one line.
type Record struct {
	strings map[string]string
	ints    map[string]int
	floats  map[string]float64
}

func (r Record) String(name string) string { return r.strings[name] }
func (r Record) Int(name string) int       { return r.ints[name] }
func (r Record) Float(name string) float64 { return r.floats[name] }

// Has reports whether the record carries a field called name.
func (r Record) Has(name string) bool {
	if _, ok := r.strings[name]; ok {
		return true
	}
	if _, ok := r.ints[name]; ok {
		return true
	}
	_, ok := r.floats[name]
	return ok
}

// Slice returns line[start:end] clipped to the line length.
func Slice(line string, start, end int) string {
	if start >= len(line) || start >= end {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

// ParseLine applies spec to line. Each value is trimmed before conversion.
// A required Int or Float field that is not numeric fails with a
// *FormatError; an optional one reads as zero.
func ParseLine(line string, spec Spec) (Record, error) {
	rec := Record{
		strings: make(map[string]string, len(spec)),
		ints:    make(map[string]int),
		floats:  make(map[string]float64),
	}
	for _, f := range spec {
		raw := strings.TrimSpace(Slice(line, f.Start, f.End))
		switch f.Kind {
		case String:
			rec.strings[f.Name] = raw
		case Int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				if f.Required {
					return Record{}, &FormatError{Field: f.Name, Value: raw, Err: err}
				}
				n = 0
			}
			rec.ints[f.Name] = n
		case Float:
			x, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				if f.Required {
					return Record{}, &FormatError{Field: f.Name, Value: raw, Err: err}
				}
				x = 0
			}
			rec.floats[f.Name] = x
		}
	}
	return rec, nil
}
