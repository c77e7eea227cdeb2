package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maauso/slideshow-api/internal/slideshow"
)

// Static errors for scenario operations.
var (
	// ErrPromptRequired is returned when the prompt is empty.
	ErrPromptRequired = errors.New("scenario: prompt is required")
	// ErrAPIKeyNotSet is returned when a model client has no API key.
	ErrAPIKeyNotSet = errors.New("scenario: API key is not set")
)

// Default generation settings shared by every model client.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 200
)

// SystemPrompt instructs the model to answer with at most three labelled scenes.
const SystemPrompt = "You are an expert in visual storytelling. Write a short scenario of at most 3 scenes " +
	"for a 10 to 15 second video. Each scene must be short and descriptive. " +
	"Answer only with the scenes, one per line, in the format: " +
	"\"Scene 1: [description]\\nScene 2: [description]\\nScene 3: [description]\""

// userPrompt wraps the caller's prompt.
func userPrompt(prompt string) string {
	return fmt.Sprintf("Create a visual scenario based on this prompt: %q", prompt)
}

// Scenario is a generated scenario text and the script parsed from it.
type Scenario struct {
	Text   string           `json:"scenario"`
	Script slideshow.Script `json:"script"`
}

// Source produces scenarios from prompts.
type Source interface {
	// Name identifies the backing model service.
	Name() string

	// FetchScenario asks the model for a scenario. Transport failures and
	// non-2xx responses wrap remote.ErrRemoteRequest; malformed bodies wrap
	// remote.ErrResponseShape.
	FetchScenario(ctx context.Context, prompt string) (Scenario, error)
}

// newScenario parses generated text into a Scenario.
func newScenario(text string) Scenario {
	text = strings.TrimSpace(text)
	return Scenario{Text: text, Script: ParseScript(text)}
}

func checkPrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrPromptRequired
	}
	return prompt, nil
}
