package scenegen

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// localeLanguages maps a story locale to the language name used in the
// prompt's cultural-context hint.
var localeLanguages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"pt": "Portuguese",
	"ar": "Arabic",
	"sw": "Swahili",
	"id": "Indonesian",
}

var titleCaser = cases.Title(language.Und)

// PromptInput carries everything the scene prompt needs.
type PromptInput struct {
	SceneText     string
	CharacterName string
	SceneNumber   int
	SceneCount    int
	Locale        string
}

// BuildScenePrompt assembles the illustration prompt for one scene. The
// reference image travels alongside the prompt, so the text only has to
// instruct the model to stay consistent with it.
func BuildScenePrompt(in PromptInput) string {
	name := titleCaser.String(strings.TrimSpace(in.CharacterName))

	parts := []string{
		fmt.Sprintf("Illustrate the following scene from a children's social story: %s", strings.TrimSpace(in.SceneText)),
		fmt.Sprintf("The main character is %s. Keep %s visually consistent with the attached reference image in every detail: face, hair, skin tone, clothing, and build.", name, name),
		fmt.Sprintf("Show %s actively engaged in the scene's action, not standing statically.", name),
		"Warm, friendly children's picture-book illustration style with soft colors.",
		"Square composition, single full-bleed image.",
		"Do not render any text, captions, labels, or speech bubbles in the image.",
	}

	if in.SceneCount > 1 {
		parts = append(parts, fmt.Sprintf("This is scene %d of %d in the story; keep style and palette continuous across scenes.", in.SceneNumber, in.SceneCount))
	}

	if lang, ok := localeLanguages[strings.ToLower(strings.TrimSpace(in.Locale))]; ok && lang != "English" {
		parts = append(parts, fmt.Sprintf("The story is told in %s; reflect a setting appropriate to its readers.", lang))
	}

	return strings.Join(parts, " ")
}
