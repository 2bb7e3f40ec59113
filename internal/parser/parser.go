// Package parser extracts frontmatter, relationship links, and description
// excerpts from Markdown notes.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/cardsync/internal/links"
	"github.com/starford/cardsync/internal/models"
)

// descriptionRe finds a "description:" label and captures text up to the
// next blank line, heading, frontmatter fence, or end of input.
var descriptionRe = regexp.MustCompile(`(?is)description:[ \t]*(.*?)(?:\n[ \t]*\n|\n#|\n---|\z)`)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
	Title       string
	Description string
	Relations   models.Relations
}

// Meta converts the result into the metadata record for path.
func (r *Result) Meta(path string) models.NoteMeta {
	return models.NoteMeta{
		Path:        path,
		Title:       r.Title,
		Description: r.Description,
		Relations:   r.Relations,
	}
}

// Parse extracts frontmatter, body, wikilinks, relations, and a description
// excerpt from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Title:       deriveTitle(fm, body),
		Description: ExtractDescription(fm, data),
		Relations:   extractRelations(fm),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML is treated as plain body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractLinks returns deduplicated wikilink targets from the body.
func extractLinks(body string) []string {
	all := links.ExtractWikiLinks(body)
	seen := make(map[string]struct{}, len(all))
	var out []string
	for _, target := range all {
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func extractRelations(fm map[string]any) models.Relations {
	if fm == nil {
		return models.Relations{}
	}
	return models.Relations{
		Up:     links.ParseLinks(fm[models.RelUp]),
		Prev:   links.ParseLinks(fm[models.RelPrev]),
		Next:   links.ParseLinks(fm[models.RelNext]),
		Canvas: links.ParseLinks(fm[models.RelCanvas]),
	}
}

// ExtractDescription prefers a string "description" frontmatter field and
// falls back to scanning raw for a "description:" label.
func ExtractDescription(fm map[string]any, raw []byte) string {
	if fm != nil {
		if s, ok := fm["description"].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	m := descriptionRe.FindSubmatch(raw)
	if m == nil {
		return ""
	}
	return unquote(strings.TrimSpace(string(m[1])))
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if fm != nil {
		if s, ok := fm["title"].(string); ok && s != "" {
			return s
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
