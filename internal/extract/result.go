package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind says which rule produced a Result.
type Kind int

const (
	KindMiss Kind = iota
	KindPattern
	KindBetween
)

func (k Kind) String() string {
	switch k {
	case KindPattern:
		return "pattern"
	case KindBetween:
		return "between"
	default:
		return "miss"
	}
}

// Result is the outcome of an extraction: a single match, a list of
// delimited substrings, or Miss.
type Result struct {
	kind   Kind
	value  string
	values []string
}

// Miss is the not-found result.
var Miss = Result{}

// Match returns a single-match result.
func Match(s string) Result {
	return Result{kind: KindPattern, value: s}
}

// Between returns a delimited-substrings result.
func Between(values []string) Result {
	return Result{kind: KindBetween, values: values}
}

// Kind reports which rule produced r.
func (r Result) Kind() Kind {
	return r.kind
}

// Found reports whether r is anything other than Miss.
func (r Result) Found() bool {
	return r.kind != KindMiss
}

// Value returns the single match of a pattern result.
func (r Result) Value() string {
	return r.value
}

// Values returns the substrings of a delimiter result.
func (r Result) Values() []string {
	return r.values
}

func (r Result) String() string {
	switch r.kind {
	case KindPattern:
		return r.value
	case KindBetween:
		return strings.Join(r.values, "\n")
	default:
		return "false"
	}
}

// MarshalJSON encodes a match as a string, delimited substrings as an array
// and Miss as false.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case KindPattern:
		return json.Marshal(r.value)
	case KindBetween:
		if r.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.values)
	default:
		return []byte("false"), nil
	}
}

// UnmarshalJSON accepts the forms produced by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*r = Miss
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Match(s)
		return nil
	case len(data) > 0 && data[0] == '[':
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return err
		}
		*r = Between(vs)
		return nil
	default:
		return fmt.Errorf("extract: cannot decode result from %q", data)
	}
}
