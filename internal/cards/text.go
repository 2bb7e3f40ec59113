package cards

import (
	"regexp"
	"strings"

	"github.com/starford/cardsync/internal/canvas"
	"github.com/starford/cardsync/internal/models"
)

// orderPrefixRe matches leading ordering prefixes such as "01 " or "2024-05-01_".
var orderPrefixRe = regexp.MustCompile(`^[0-9][0-9._-]*[\s._-]+`)

// LinkPrefix is the substring every generated card for notePath contains.
func LinkPrefix(notePath string) string {
	return "[[" + models.Basename(notePath)
}

// DisplayName returns the cleaned name shown on a card: the base name
// without an ordering prefix and with underscores as spaces.
func DisplayName(notePath string) string {
	base := models.Basename(notePath)
	name := orderPrefixRe.ReplaceAllString(base, "")
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return base
	}
	return strings.NewReplacer("|", "", "[", "", "]", "").Replace(name)
}

// CardText renders the card markdown for a note: a level one heading with a
// self-link, aliased when the display name differs from the base name, then
// the description after a blank line.
func CardText(note models.NoteMeta) string {
	base := models.Basename(note.Path)
	var sb strings.Builder
	sb.WriteString("# [[")
	sb.WriteString(base)
	if display := DisplayName(note.Path); display != base {
		sb.WriteString("|")
		sb.WriteString(display)
	}
	sb.WriteString("]]")
	if desc := strings.TrimSpace(note.Description); desc != "" {
		sb.WriteString("\n\n")
		sb.WriteString(desc)
	}
	return sb.String()
}

// labelForms are the self-link shapes that tie a text card to a group label.
func labelForms(label string) []string {
	return []string{
		"[[" + label + "]]",
		"[[" + label + "|",
		"/" + label + "]]",
		"/" + label + "|",
		"[[" + label + models.NoteExt,
		"/" + label + models.NoteExt,
	}
}

// matchesLabel reports whether n is the card a group labelled label frames.
func matchesLabel(n *canvas.Node, label string) bool {
	switch n.Type {
	case canvas.TypeFile:
		return models.Basename(n.File) == label
	case canvas.TypeText:
		for _, form := range labelForms(label) {
			if strings.Contains(n.Text, form) {
				return true
			}
		}
	}
	return false
}
