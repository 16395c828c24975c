// Package redact rewrites span attributes before they are queued for
// export, so sensitive payloads (prompts, completions, user content) never
// leave the process.
//
// Redaction targets string attributes selected by key glob patterns, by an
// optional regular expression over values, or both. Numeric and boolean
// attributes always pass, as do the protected operational keys (model
// names, token counts, latencies, statuses) that downstream dashboards
// depend on.
package redact

import (
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/exesolution-com/tracepipe/trace"
)

// Mask replaces redacted string values under partial_mask.
const Mask = "[REDACTED]"

// Mode names accepted by New.
const (
	ModeDisabled    = "disabled"
	ModeFullDrop    = "full_drop"
	ModePartialMask = "partial_mask"
)

// Keys that are never redacted regardless of configuration. Matched with
// the same glob syntax as user keys.
var protectedKeys = []string{
	"*.model",
	"model",
	"*.status",
	"*.status_code",
	"status",
	"*.tokens",
	"*.tokens.*",
	"*.token_count",
	"*.latency",
	"*.latency_ms",
	"*.duration_ms",
}

// Redactor rewrites a span's attributes. Apply never mutates its input:
// it returns the original span untouched or a detached rewritten copy.
type Redactor interface {
	Apply(s *trace.Span) *trace.Span
	Description() string
}

// New builds a redactor from a mode name. Keys are doublestar globs matched
// against attribute keys; pattern is an optional regexp matched against
// string values. Malformed globs or patterns fail here, never at apply time.
func New(mode, pattern string, keys ...string) (Redactor, error) {
	switch mode {
	case ModeDisabled:
		return Disabled(), nil
	case ModeFullDrop:
		return FullDrop(pattern, keys...)
	case ModePartialMask:
		return PartialMask(pattern, keys...)
	default:
		return nil, fmt.Errorf("unknown redaction mode %q", mode)
	}
}

type disabled struct{}

func (disabled) Apply(s *trace.Span) *trace.Span { return s }
func (disabled) Description() string             { return ModeDisabled }

// Disabled passes every span through unchanged.
func Disabled() Redactor { return disabled{} }

// matcher decides which attributes a redactor touches.
type matcher struct {
	keys    []string
	pattern *regexp.Regexp
}

func newMatcher(pattern string, keys []string) (matcher, error) {
	for _, k := range keys {
		if !doublestar.ValidatePattern(k) {
			return matcher{}, fmt.Errorf("redaction key pattern %q invalid", k)
		}
	}
	m := matcher{keys: keys}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return matcher{}, fmt.Errorf("redaction value pattern: %w", err)
		}
		m.pattern = re
	}
	return m, nil
}

func (m matcher) targets(a trace.Attr) bool {
	if a.Value.Kind() != trace.ValueString {
		return false
	}
	if matchAny(protectedKeys, a.Key) {
		return false
	}
	if matchAny(m.keys, a.Key) {
		return true
	}
	return m.pattern != nil && m.pattern.MatchString(a.Value.Str())
}

func matchAny(globs []string, key string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, key); err == nil && ok {
			return true
		}
	}
	return false
}

type fullDrop struct {
	matcher
}

// FullDrop removes targeted attributes entirely. An empty pattern disables
// value matching; with no keys and no pattern nothing is ever dropped.
func FullDrop(pattern string, keys ...string) (Redactor, error) {
	m, err := newMatcher(pattern, keys)
	if err != nil {
		return nil, err
	}
	return fullDrop{matcher: m}, nil
}

func (r fullDrop) Apply(s *trace.Span) *trace.Span {
	attrs := s.Attributes()
	kept := attrs[:0]
	touched := false
	for _, a := range attrs {
		if r.targets(a) {
			touched = true
			continue
		}
		kept = append(kept, a)
	}
	if !touched {
		return s
	}
	return s.CopyWithAttributes(kept)
}

func (r fullDrop) Description() string { return ModeFullDrop }

type partialMask struct {
	matcher
}

// PartialMask keeps targeted attributes but replaces their values with the
// Mask token, preserving which keys were present.
func PartialMask(pattern string, keys ...string) (Redactor, error) {
	m, err := newMatcher(pattern, keys)
	if err != nil {
		return nil, err
	}
	return partialMask{matcher: m}, nil
}

func (r partialMask) Apply(s *trace.Span) *trace.Span {
	attrs := s.Attributes()
	touched := false
	for i, a := range attrs {
		if r.targets(a) {
			attrs[i] = trace.String(a.Key, Mask)
			touched = true
		}
	}
	if !touched {
		return s
	}
	return s.CopyWithAttributes(attrs)
}

func (r partialMask) Description() string { return ModePartialMask }
