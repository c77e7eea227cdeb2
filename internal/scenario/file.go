package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maauso/slideshow-api/internal/slideshow"
)

// ErrInvalidScriptFile is returned when a script file cannot be used.
var ErrInvalidScriptFile = errors.New("scenario: invalid script file")

// ScriptFile is the on-disk form of a script:
//
//	duration: 12s
//	scenes:
//	  - A robot walks through a forest.
//	  - It finds a hidden door.
//
// A scenario text with scene labels may be given instead of scenes.
type ScriptFile struct {
	Duration time.Duration `yaml:"duration"`
	Scenes   []string      `yaml:"scenes"`
	Scenario string        `yaml:"scenario"`
}

// Script returns the scenes of the file, parsing Scenario when Scenes is empty.
func (f ScriptFile) Script() slideshow.Script {
	if len(f.Scenes) > 0 {
		return slideshow.NewScript(f.Scenes...)
	}
	return ParseScript(f.Scenario)
}

// LoadScriptFile reads a YAML script file.
func LoadScriptFile(path string) (ScriptFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's command line
	if err != nil {
		return ScriptFile{}, fmt.Errorf("scenario: read script file: %w", err)
	}

	var f ScriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return ScriptFile{}, fmt.Errorf("%w: %w", ErrInvalidScriptFile, err)
	}
	if f.Duration < 0 {
		return ScriptFile{}, fmt.Errorf("%w: negative duration %s", ErrInvalidScriptFile, f.Duration)
	}
	if err := f.Script().Validate(); err != nil {
		return ScriptFile{}, fmt.Errorf("%w: %w", ErrInvalidScriptFile, err)
	}
	return f, nil
}
