package structtext

import (
	"errors"
	"fmt"
	"strings"
)

// Prefix marks a message as struct-text.
const Prefix = "Struct"

const (
	afterMarker    = "after=Struct{"
	sourceBoundary = "},source="
)

// ErrMalformedStruct is returned when the struct boundaries cannot be located
// or the body yields no pairs.
var ErrMalformedStruct = errors.New("malformed struct text")

// Parser turns a struct-text message into the flat pairs of its change
// payload. Implementations may return partial pairs together with an error.
type Parser interface {
	Parse(message string) ([]Pair, error)
}

// MarkerParser locates the "after" payload with literal markers rather than a
// brace grammar. It assumes the after struct is followed directly by the
// source struct, or is the last struct in the message.
type MarkerParser struct{}

// Parse returns the pairs of the after=Struct{...} payload. When the message
// has no after payload it is read as a single flat struct.
func (MarkerParser) Parse(message string) ([]Pair, error) {
	idx := strings.Index(message, afterMarker)
	if idx == -1 {
		return parseFlat(message)
	}
	start := idx + len(afterMarker)

	end := strings.Index(message[start:], sourceBoundary)
	if end == -1 {
		end = strings.LastIndexByte(message, '}')
	} else {
		end += start
	}
	if end < start {
		return nil, fmt.Errorf("%w: after struct is not closed", ErrMalformedStruct)
	}

	pairs := ParsePairs(message[start:end])
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: after struct has no fields", ErrMalformedStruct)
	}
	return pairs, nil
}

func parseFlat(message string) ([]Pair, error) {
	l := strings.IndexByte(message, '{')
	r := strings.LastIndexByte(message, '}')
	if l < 0 || r <= l {
		return nil, fmt.Errorf("%w: no enclosing braces", ErrMalformedStruct)
	}

	pairs := ParsePairs(message[l+1 : r])
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: struct has no fields", ErrMalformedStruct)
	}
	return pairs, nil
}
