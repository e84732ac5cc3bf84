// Package story holds pure helpers for working with personalized story text.
package story

import (
	"regexp"
	"strings"
)

var sceneBoundary = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// SplitScenes breaks a story into ordered scene texts, one per paragraph.
// Paragraphs are separated by blank lines; segments that are empty after
// trimming are dropped. An empty or all-whitespace story yields nil, which
// callers must treat as a validation failure rather than an empty batch.
func SplitScenes(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var scenes []string
	for _, segment := range sceneBoundary.Split(text, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		scenes = append(scenes, segment)
	}
	return scenes
}
