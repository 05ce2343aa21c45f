package query

import (
	"fmt"
	"strings"
)

const (
	escapeChar = '\\'
	clauseSep  = ';'
	valueSep   = '='
	pathSep    = '>'
)

// ParseError reports a malformed descriptor string.
type ParseError struct {
	Offset  int
	Input   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed descriptor at offset %d: %s", e.Offset, e.Message)
}

func escape(s string) string {
	if !strings.ContainsAny(s, `\;=>`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escapeChar, clauseSep, valueSep, pathSep:
			sb.WriteByte(escapeChar)
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func unescape(s string) string {
	if !strings.ContainsRune(s, escapeChar) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == escapeChar && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

type piece struct {
	raw string
	off int
}

// split cuts s at every unescaped sep, keeping escapes in the pieces.
func split(s string, base int, sep byte, input string) ([]piece, error) {
	var (
		out   []piece
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escapeChar:
			if i+1 >= len(s) {
				return nil, &ParseError{Offset: base + i, Input: input, Message: "dangling escape"}
			}
			i++
		case sep:
			out = append(out, piece{raw: s[start:i], off: base + start})
			start = i + 1
		}
	}
	return append(out, piece{raw: s[start:], off: base + start}), nil
}

// ParseCondition parses the serialized form of a single condition. The empty
// string parses to the empty condition.
func ParseCondition(s string) (Condition, error) {
	if s == "" {
		return Condition{}, nil
	}
	return parseCondition(s, 0, s)
}

func parseCondition(s string, base int, input string) (Condition, error) {
	clauses, err := split(s, base, clauseSep, input)
	if err != nil {
		return Condition{}, err
	}
	var c Condition
	for _, cl := range clauses {
		kv, err := split(cl.raw, cl.off, valueSep, input)
		if err != nil {
			return Condition{}, err
		}
		if len(kv) != 2 {
			return Condition{}, &ParseError{
				Offset:  cl.off,
				Input:   input,
				Message: fmt.Sprintf("clause %q must have exactly one '='", cl.raw),
			}
		}
		name := strings.TrimSpace(unescape(kv[0].raw))
		if name == "" {
			return Condition{}, &ParseError{Offset: cl.off, Input: input, Message: "empty property name"}
		}
		c.clauses = append(c.clauses, Clause{Name: name, Value: unescape(kv[1].raw)})
	}
	return c, nil
}

// ParsePath parses a full descriptor path, ancestors first.
func ParsePath(s string) (Descriptor, error) {
	if strings.TrimSpace(s) == "" {
		return Descriptor{}, &ParseError{Input: s, Message: "empty descriptor"}
	}
	segs, err := split(s, 0, pathSep, s)
	if err != nil {
		return Descriptor{}, err
	}
	conds := make([]Condition, 0, len(segs))
	for _, seg := range segs {
		if seg.raw == "" {
			return Descriptor{}, &ParseError{Offset: seg.off, Input: s, Message: "empty path segment"}
		}
		c, err := parseCondition(seg.raw, seg.off, s)
		if err != nil {
			return Descriptor{}, err
		}
		conds = append(conds, c)
	}
	d, _ := FromSegments(conds)
	return d, nil
}
