// Package scenario turns free-text prompts into slideshow scripts. A Source
// asks a language model for a short "Scene N: ..." scenario and ParseScript
// splits that text into scenes.
package scenario

import (
	"regexp"
	"strings"

	"github.com/maauso/slideshow-api/internal/slideshow"
)

// sceneLabel matches "Scene 1:", "Scène 2 :", "**Scene 3:**" and similar.
var sceneLabel = regexp.MustCompile(`(?i)\*{0,2}[ \t]*sc[eèé]ne[ \t]*\d+[ \t]*\*{0,2}[ \t]*:[ \t]*\*{0,2}`)

// ParseScript splits scenario text on its scene labels. Text before the first
// label is discarded, fragments are trimmed and empty ones dropped, and order
// is kept. Text without any label yields an empty script.
func ParseScript(text string) slideshow.Script {
	locs := sceneLabel.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return slideshow.Script{Scenes: []slideshow.Scene{}}
	}

	texts := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		texts = append(texts, cleanFragment(text[loc[1]:end]))
	}
	return slideshow.NewScript(texts...)
}

// cleanFragment trims whitespace and leftover markdown emphasis.
func cleanFragment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	s = strings.Join(strings.Fields(s), " ")
	return s
}
