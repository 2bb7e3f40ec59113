package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractWikiLinks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "see [[Note A]]", []string{"Note A"}},
		{"alias dropped", "[[Alias|Display]]", []string{"Alias"}},
		{"order and duplicates kept", "[[b]] then [[a]] then [[b]]", []string{"b", "a", "b"}},
		{"lazy across pairs", "[[one]] and [[two|2]]", []string{"one", "two"}},
		{"unterminated", "broken [[link here", []string{}},
		{"empty target skipped", "[[ ]] [[|x]]", []string{}},
		{"empty between real links", "[[]] [[a]] [[|x]] [[a]]", []string{"a", "a"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractWikiLinks(tc.in))
		})
	}
}

func TestParseLinks(t *testing.T) {
	assert.Equal(t, []string{"Parent"}, ParseLinks("[[Parent]]"))
	assert.Equal(t, []string{"Parent"}, ParseLinks("[[Parent|The parent]]"))
	assert.Equal(t, []string{"raw target"}, ParseLinks(" raw target "))
	assert.Equal(t, []string{"a", "b"}, ParseLinks([]any{"[[a]]", 42, nil, "b", ""}))
	assert.Equal(t, []string{"x"}, ParseLinks([]string{"[[x|y]]"}))
	assert.Empty(t, ParseLinks(nil))
	assert.Empty(t, ParseLinks(""))
	assert.Empty(t, ParseLinks([]any{}))
	assert.Empty(t, ParseLinks(7))
}

func TestStripSubpath(t *testing.T) {
	assert.Equal(t, "note", StripSubpath("note#Heading"))
	assert.Equal(t, "note", StripSubpath("note#^block"))
	assert.Equal(t, "folder/note", StripSubpath("folder/note"))
}

func TestResolveAll(t *testing.T) {
	r := ResolverFunc(func(target, _ string) (string, bool) {
		if target == "missing" {
			return "", false
		}
		return target + ".md", true
	})
	got := ResolveAll(r, []string{"a", "missing", "b", "a"}, "board.canvas")
	assert.Equal(t, []string{"a.md", "b.md"}, got)
}
