// Package links extracts wiki-style link targets from text and relationship fields.
package links

import (
	"regexp"
	"strings"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Resolver maps a link target to a vault path. Resolution is relative to
// fromPath; a miss is reported as ok == false and is never an error.
type Resolver interface {
	Resolve(target, fromPath string) (path string, ok bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(target, fromPath string) (string, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(target, fromPath string) (string, bool) { return f(target, fromPath) }

// ExtractWikiLinks returns the target of every [[target]] or [[target|alias]]
// in text, in order of appearance. Duplicates are kept. Links with an empty
// or blank target, such as [[]] or [[|alias]], name no note and are skipped.
func ExtractWikiLinks(text string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if target := targetOf(m[1]); target != "" {
			out = append(out, target)
		}
	}
	return out
}

// ParseLinks normalises a scalar or list-valued relationship field into link
// targets. Wiki-link entries lose their alias; plain strings are taken as the
// target verbatim. Non-string entries and empty values are dropped.
func ParseLinks(field any) []string {
	switch v := field.(type) {
	case nil:
		return nil
	case string:
		if t := parseEntry(v); t != "" {
			return []string{t}
		}
		return nil
	case []string:
		var out []string
		for _, s := range v {
			if t := parseEntry(s); t != "" {
				out = append(out, t)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if t := parseEntry(s); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	return nil
}

func parseEntry(s string) string {
	if m := wikilinkRe.FindStringSubmatch(s); m != nil {
		return targetOf(m[1])
	}
	return strings.TrimSpace(s)
}

// targetOf strips the alias from the inner text of a wiki link.
func targetOf(inner string) string {
	if i := strings.Index(inner, "|"); i >= 0 {
		inner = inner[:i]
	}
	return strings.TrimSpace(inner)
}

// StripSubpath removes a trailing #heading or #^block reference from target.
func StripSubpath(target string) string {
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	return strings.TrimSpace(target)
}

// ResolveAll resolves each target against r and returns the hits in order,
// without duplicates. Misses are skipped silently.
func ResolveAll(r Resolver, targets []string, fromPath string) []string {
	seen := make(map[string]struct{}, len(targets))
	var out []string
	for _, t := range targets {
		p, ok := r.Resolve(t, fromPath)
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
