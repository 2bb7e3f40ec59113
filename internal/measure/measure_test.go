package measure

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// areaSurface models text as a fixed area that wraps to any width.
type areaSurface struct {
	title, natural, area float64
	probes               int
	closed               bool
	panicOnHeight        bool
}

func (s *areaSurface) TitleWidth() float64   { return s.title }
func (s *areaSurface) NaturalWidth() float64 { return s.natural }
func (s *areaSurface) HeightAt(w float64) float64 {
	if s.panicOnHeight {
		panic("layout failed")
	}
	s.probes++
	return s.area / w
}
func (s *areaSurface) Close() error { s.closed = true; return nil }

type stubRenderer struct {
	surf  *areaSurface
	calls int
	err   error
}

func (r *stubRenderer) Render(string) (Surface, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.surf, nil
}

func newService(t *testing.T, r Renderer, policy Policy) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Policy = policy
	s, err := NewService(r, cfg)
	require.NoError(t, err)
	return s
}

func TestMeasured_ClampsNaturalWidth(t *testing.T) {
	cases := []struct {
		name           string
		title, natural float64
		wantWidth      float64
	}{
		{"narrow content uses min width", 50, 100, 250},
		{"wide content uses max width", 50, 900, 400},
		{"natural width in range", 50, 320.4, 321},
		{"long title raises lower bound", 300, 100, 340},
		{"title past max doubles upper bound", 500, 100, 540},
		{"title past doubled bound clamps", 1000, 100, 800},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			surf := &areaSurface{title: tc.title, natural: tc.natural, area: 40000}
			s := newService(t, &stubRenderer{surf: surf}, PolicyMeasured)

			size, err := s.Measure("# x")
			require.NoError(t, err)
			assert.Equal(t, tc.wantWidth, size.Width)
			assert.Greater(t, size.Height, 0.0)
			assert.True(t, surf.closed)
		})
	}
}

func TestSquare_BisectsWithinProbeBudget(t *testing.T) {
	// sqrt(90000) = 300 lies inside [250, 400].
	surf := &areaSurface{title: 10, natural: 100, area: 90000}
	s := newService(t, &stubRenderer{surf: surf}, PolicySquare)

	size, err := s.Measure("# x")
	require.NoError(t, err)
	assert.Equal(t, size.Width, size.Height)
	assert.InDelta(t, 300, size.Width, 2)
	assert.LessOrEqual(t, surf.probes, 10)
}

func TestSquare_ContentTallerThanMaxWidth(t *testing.T) {
	surf := &areaSurface{title: 10, natural: 100, area: 400 * 1000}
	s := newService(t, &stubRenderer{surf: surf}, PolicySquare)

	size, err := s.Measure("# x")
	require.NoError(t, err)
	// Best achievable is the widest probe; the square grows to fit the height.
	assert.GreaterOrEqual(t, size.Height, 1000.0)
	assert.Equal(t, size.Width, size.Height)
}

func TestMeasure_CachesResults(t *testing.T) {
	r := &stubRenderer{surf: &areaSurface{natural: 300, area: 30000}}
	s := newService(t, r, PolicyMeasured)

	a, err := s.Measure("same")
	require.NoError(t, err)
	b, err := s.Measure("same")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, r.calls)

	_, err = s.Measure("different")
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
}

func TestMeasure_RenderError(t *testing.T) {
	boom := errors.New("boom")
	s := newService(t, &stubRenderer{err: boom}, PolicyMeasured)
	_, err := s.Measure("x")
	assert.ErrorIs(t, err, boom)
}

func TestMeasure_ClosesSurfaceOnPanic(t *testing.T) {
	surf := &areaSurface{panicOnHeight: true}
	s := newService(t, &stubRenderer{surf: surf}, PolicyMeasured)

	assert.Panics(t, func() { _, _ = s.Measure("x") })
	assert.True(t, surf.closed)
}

func TestNewService_UnknownPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = "circle"
	_, err := NewService(&stubRenderer{}, cfg)
	assert.Error(t, err)
}

func TestFontRenderer(t *testing.T) {
	r, err := NewFontRenderer(DefaultFontConfig())
	require.NoError(t, err)

	short, err := r.Render("# [[note]]\n\nSummary text")
	require.NoError(t, err)
	defer short.Close()

	long, err := r.Render("# [[note]]\n\n" + strings.Repeat("several words of description ", 40))
	require.NoError(t, err)
	defer long.Close()

	assert.Greater(t, short.TitleWidth(), 2*DefaultFontConfig().Padding)
	assert.Greater(t, long.HeightAt(300), short.HeightAt(300))
	assert.GreaterOrEqual(t, long.HeightAt(250), long.HeightAt(400))
	assert.Greater(t, long.NaturalWidth(), 400.0)
}

func TestFontRenderer_AliasUsesDisplayText(t *testing.T) {
	r, err := NewFontRenderer(DefaultFontConfig())
	require.NoError(t, err)

	plain, err := r.Render("# [[folder/a-very-long-note-file-name|Hi]]")
	require.NoError(t, err)
	defer plain.Close()
	bare, err := r.Render("# Hi")
	require.NoError(t, err)
	defer bare.Close()

	assert.InDelta(t, bare.TitleWidth(), plain.TitleWidth(), 0.01)
}

func TestServiceWithFontRenderer(t *testing.T) {
	r, err := NewFontRenderer(DefaultFontConfig())
	require.NoError(t, err)
	s, err := NewService(r, DefaultConfig())
	require.NoError(t, err)

	size, err := s.Measure("# [[note]]\n\nSummary text")
	require.NoError(t, err)
	assert.Equal(t, 250.0, size.Width)
	assert.Greater(t, size.Height, 48.0)

	title := "# [[" + strings.Repeat("Extremely Long Title ", 5) + "]]"
	size, err = s.Measure(title)
	require.NoError(t, err)
	assert.Greater(t, size.Width, 400.0)
	assert.LessOrEqual(t, size.Width, 800.0)
}
