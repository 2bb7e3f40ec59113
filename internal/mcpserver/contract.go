package mcpserver

// CardFormatContract describes the text card and group frame cardsync
// generates for a note inside a canvas.
const CardFormatContract = `# cardsync Card Format

A note drawn on a canvas is a **text card** wrapped by a **group frame**.

## Text card

` + "```" + `markdown
# [[note-name|Display name]]

Description taken from the note.
` + "```" + `

1. The first line is an H1 holding a wikilink to the note's file name
   (no ` + "`" + `.md` + "`" + `). The ` + "`" + `|Display name` + "`" + ` alias is added only when the display
   form differs from the file name: a leading ordering prefix such as
   ` + "`" + `01 - ` + "`" + ` is dropped, underscores become spaces.
2. The description comes from the note's ` + "`" + `description` + "`" + ` frontmatter field.
   When the field is missing, a ` + "`" + `description:` + "`" + ` line in the body is used up to
   the next blank line or heading. No description means the card is the
   heading alone.
3. Width and height are measured from the rendered text and kept within
   the configured bounds; the card is resized only when it drifts by more
   than the configured tolerance.

## Group frame

- A ` + "`" + `group` + "`" + ` node labelled with the note's file name, with exactly the
  card's position and size.
- The frame is listed before its card in the canvas file.
- ` + "`" + `adjust_groups` + "`" + ` snaps frames holding at most one card back onto that card.

## Placement

New cards go to the right of the rightmost node, one gap apart, at the
average height of the existing nodes. An empty canvas starts at the origin.

## Example node pair

` + "```" + `json
{"id":"a1b2c3d4e5f60718","type":"group","label":"01_Weekly_review","x":0,"y":0,"width":250,"height":120},
{"id":"0f1e2d3c4b5a6978","type":"text","text":"# [[01_Weekly_review|Weekly review]]\n\nHow the week went.","x":0,"y":0,"width":250,"height":120}
` + "```" + `
`
