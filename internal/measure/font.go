package measure

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// wikiLinkRe matches [[target]] and [[target|alias]] for display text.
var wikiLinkRe = regexp.MustCompile(`\[\[([^\]|]*)(?:\|([^\]]*))?\]\]`)

// FontConfig controls the typography of the off-screen render.
type FontConfig struct {
	Size        float64
	LineSpacing float64
	Padding     float64
	BlockGap    float64
}

// DefaultFontConfig returns the stock typography.
func DefaultFontConfig() FontConfig {
	return FontConfig{Size: 16, LineSpacing: 1.5, Padding: 24, BlockGap: 12}
}

// headingScale is the font size multiplier per heading level.
var headingScale = map[int]float64{1: 1.6, 2: 1.35, 3: 1.2}

// FontRenderer lays out markdown with the Go fonts through a gg context.
type FontRenderer struct {
	cfg     FontConfig
	regular *truetype.Font
	bold    *truetype.Font
	mono    *truetype.Font
	md      goldmark.Markdown
}

var _ Renderer = (*FontRenderer)(nil)

// NewFontRenderer parses the bundled fonts once.
func NewFontRenderer(cfg FontConfig) (*FontRenderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("measure: parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("measure: parse bold font: %w", err)
	}
	mono, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("measure: parse mono font: %w", err)
	}
	return &FontRenderer{cfg: cfg, regular: regular, bold: bold, mono: mono, md: goldmark.New()}, nil
}

type block struct {
	text       string
	face       font.Face
	lineHeight float64
	heading    bool
}

type fontSurface struct {
	dc     *gg.Context
	cfg    FontConfig
	blocks []block
	faces  []font.Face
}

// Render parses markdown into blocks and prepares faces for each. The
// returned surface owns the faces until Close.
func (r *FontRenderer) Render(markdown string) (Surface, error) {
	src := []byte(wikiLinkRe.ReplaceAllStringFunc(markdown, displayText))
	doc := r.md.Parser().Parse(text.NewReader(src))

	s := &fontSurface{dc: gg.NewContext(1, 1), cfg: r.cfg}
	faces := map[string]font.Face{}
	faceFor := func(f *truetype.Font, name string, size float64) (font.Face, float64) {
		key := fmt.Sprintf("%s/%.2f", name, size)
		face, ok := faces[key]
		if !ok {
			face = truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
			faces[key] = face
			s.faces = append(s.faces, face)
		}
		return face, size * r.cfg.LineSpacing
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			scale, ok := headingScale[node.Level]
			if !ok {
				scale = 1
			}
			face, lh := faceFor(r.bold, "bold", r.cfg.Size*scale)
			s.blocks = append(s.blocks, block{text: inlineText(node, src), face: face, lineHeight: lh, heading: true})
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			face, lh := faceFor(r.mono, "mono", r.cfg.Size*0.9)
			s.blocks = append(s.blocks, block{text: rawLines(n, src), face: face, lineHeight: lh})
		case *ast.List:
			face, lh := faceFor(r.regular, "regular", r.cfg.Size)
			var items []string
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				items = append(items, "• "+inlineText(item, src))
			}
			s.blocks = append(s.blocks, block{text: strings.Join(items, "\n"), face: face, lineHeight: lh})
		case *ast.ThematicBreak:
			continue
		default:
			face, lh := faceFor(r.regular, "regular", r.cfg.Size)
			if t := inlineText(n, src); t != "" {
				s.blocks = append(s.blocks, block{text: t, face: face, lineHeight: lh})
			}
		}
	}
	return s, nil
}

func (s *fontSurface) TitleWidth() float64 {
	for _, b := range s.blocks {
		if b.heading {
			return s.widest(b) + 2*s.cfg.Padding
		}
	}
	return 0
}

func (s *fontSurface) NaturalWidth() float64 {
	var w float64
	for _, b := range s.blocks {
		w = max(w, s.widest(b))
	}
	return w + 2*s.cfg.Padding
}

func (s *fontSurface) HeightAt(width float64) float64 {
	inner := max(width-2*s.cfg.Padding, 1)
	h := 2 * s.cfg.Padding
	for i, b := range s.blocks {
		s.dc.SetFontFace(b.face)
		lines := s.dc.WordWrap(b.text, inner)
		h += float64(max(len(lines), 1)) * b.lineHeight
		if i > 0 {
			h += s.cfg.BlockGap
		}
	}
	return h
}

func (s *fontSurface) Close() error {
	var firstErr error
	for _, f := range s.faces {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.faces = nil
	s.blocks = nil
	return firstErr
}

func (s *fontSurface) widest(b block) float64 {
	s.dc.SetFontFace(b.face)
	var w float64
	for _, line := range strings.Split(b.text, "\n") {
		lw, _ := s.dc.MeasureString(line)
		w = max(w, lw)
	}
	return w
}

func displayText(link string) string {
	m := wikiLinkRe.FindStringSubmatch(link)
	if m[2] != "" {
		return m[2]
	}
	target := m[1]
	if i := strings.LastIndex(target, "/"); i >= 0 {
		target = target[i+1:]
	}
	return strings.TrimSuffix(target, ".md")
}

// inlineText concatenates the text segments under n. Soft breaks become
// spaces; hard breaks become newlines.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			switch {
			case t.HardLineBreak():
				sb.WriteByte('\n')
			case t.SoftLineBreak():
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func rawLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}
