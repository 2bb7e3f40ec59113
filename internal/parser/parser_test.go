package parser

import (
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\nup: \"[[Parent]]\"\nnext:\n  - \"[[Two|second]]\"\n  - Three\ncanvas: \"[[Board.canvas]]\"\n---\n# Hello\nBody text with [[Other]].\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if r.Body != "# Hello\nBody text with [[Other]].\n" {
		t.Errorf("body = %q", r.Body)
	}
	if len(r.Relations.Up) != 1 || r.Relations.Up[0] != "Parent" {
		t.Errorf("up = %v", r.Relations.Up)
	}
	if len(r.Relations.Next) != 2 || r.Relations.Next[0] != "Two" || r.Relations.Next[1] != "Three" {
		t.Errorf("next = %v", r.Relations.Next)
	}
	if len(r.Relations.Canvas) != 1 || r.Relations.Canvas[0] != "Board.canvas" {
		t.Errorf("canvas = %v", r.Relations.Canvas)
	}
	if len(r.Links) != 1 || r.Links[0] != "Other" {
		t.Errorf("links = %v", r.Links)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
	if len(r.Relations.Up) != 0 {
		t.Errorf("expected no relations, got %+v", r.Relations)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestExtractDescription(t *testing.T) {
	cases := []struct {
		name string
		fm   map[string]any
		raw  string
		want string
	}{
		{"frontmatter field wins", map[string]any{"description": "From FM"}, "description: from body", "From FM"},
		{"blank field falls back", map[string]any{"description": "  "}, "description: from body\n\nrest", "from body"},
		{"non-string field falls back", map[string]any{"description": []any{"x"}}, "Description: label text", "label text"},
		{"stops at heading", nil, "intro\ndescription: short\n# Next section", "short"},
		{"stops at fence", nil, "---\ndescription: 'quoted'\n---\nbody", "quoted"},
		{"multi-line until blank", nil, "description: line one\nline two\n\nafter", "line one\nline two"},
		{"absent", nil, "nothing here", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractDescription(tc.fm, []byte(tc.raw))
			if got != tc.want {
				t.Errorf("description = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractLinks_Dedup(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again."
	got := extractLinks(body)
	if len(got) != 2 || got[0] != "Note A" || got[1] != "Note B" {
		t.Errorf("links = %v", got)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	if title := deriveTitle(fm, "# H1 Title\ntext"); title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestMeta(t *testing.T) {
	r, _ := Parse([]byte("---\ndescription: Summary text\nprev: \"[[a]]\"\n---\nbody"))
	m := r.Meta("notes/b.md")
	if m.Path != "notes/b.md" || m.Description != "Summary text" || len(m.Relations.Prev) != 1 {
		t.Errorf("meta = %+v", m)
	}
}
