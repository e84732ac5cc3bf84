package scenegen

import (
	"strings"
	"testing"
)

func TestBuildScenePrompt(t *testing.T) {
	prompt := BuildScenePrompt(PromptInput{
		SceneText:     "Amina waters the sunflower in the garden.",
		CharacterName: "amina",
		SceneNumber:   2,
		SceneCount:    3,
		Locale:        "en",
	})

	for _, want := range []string{
		"Amina waters the sunflower in the garden.",
		"The main character is Amina.",
		"reference image",
		"actively engaged",
		"Square composition",
		"speech bubbles",
		"scene 2 of 3",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\nprompt: %s", want, prompt)
		}
	}

	if strings.Contains(prompt, "told in") {
		t.Errorf("english story should not carry a language hint\nprompt: %s", prompt)
	}
}

func TestBuildScenePromptLocaleHint(t *testing.T) {
	prompt := BuildScenePrompt(PromptInput{
		SceneText:     "Mateo espera su turno.",
		CharacterName: "Mateo",
		SceneNumber:   1,
		SceneCount:    1,
		Locale:        "es",
	})

	if !strings.Contains(prompt, "Spanish") {
		t.Errorf("prompt missing Spanish hint\nprompt: %s", prompt)
	}
	if strings.Contains(prompt, "scene 1 of 1") {
		t.Errorf("single-scene story should not carry a continuity hint\nprompt: %s", prompt)
	}
}

func TestBuildScenePromptStandaloneRetry(t *testing.T) {
	prompt := BuildScenePrompt(PromptInput{
		SceneText:     "Noa ties her shoes.",
		CharacterName: "Noa",
		SceneNumber:   3,
		SceneCount:    0,
	})

	if strings.Contains(prompt, "scene 3 of") {
		t.Errorf("retry outside a batch should not carry a continuity hint\nprompt: %s", prompt)
	}
}
