package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/cardsync/internal/companion"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/navigation"
)

var (
	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	headerStyle    = lipgloss.NewStyle().Bold(true)
	existingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	potentialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0")).Italic(true)
	crumbStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	currentStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))

	okMark = existingStyle.Render("✓")
)

func kindLabel(k models.ReferenceKind) string {
	if k == models.ReferenceExisting {
		return "drawn on this canvas"
	}
	return "suggested by the canvas field"
}

func printReferences(w io.Writer, note string, refs []models.ReferenceResult) {
	fmt.Fprintln(w, headerStyle.Render("Canvases for "+note))
	if len(refs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  none"))
		return
	}
	for _, r := range refs {
		style := potentialStyle
		if r.Kind == models.ReferenceExisting {
			style = existingStyle
		}
		fmt.Fprintf(w, "  %s %s\n", style.Render(fmt.Sprintf("%-9s", r.Kind)), r.File)
	}
}

func printUpsert(w io.Writer, res companion.UpsertResult) {
	fmt.Fprintf(w, "%s %s card %s in %s\n", okMark, res.Outcome, res.NodeID, res.Canvas)
}

func printTrail(w io.Writer, crumbs []string, nb navigation.Neighbors) {
	parts := make([]string, len(crumbs))
	for i, c := range crumbs {
		name := models.Basename(c)
		if i == len(crumbs)-1 {
			parts[i] = currentStyle.Render(name)
		} else {
			parts[i] = crumbStyle.Render(name)
		}
	}
	fmt.Fprintln(w, strings.Join(parts, mutedStyle.Render(" › ")))
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("prev:"), joinOrNone(nb.Prev))
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("next:"), joinOrNone(nb.Next))
}

func joinOrNone(paths []string) string {
	if len(paths) == 0 {
		return mutedStyle.Render("none")
	}
	return strings.Join(paths, ", ")
}
