package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maauso/slideshow-api/internal/scenario"
)

type scenarioOptions struct {
	textPath string
	asJSON   bool
}

type scenarioOutput struct {
	Source   string   `json:"source,omitempty"`
	Scenario string   `json:"scenario"`
	Scenes   []string `json:"scenes"`
}

func newScenarioCmd(a *app) *cobra.Command {
	var o scenarioOptions

	cmd := &cobra.Command{
		Use:   "scenario [prompt]",
		Short: "Generate a scenario and print its scenes",
		Long: `Generate a scenario from a prompt with the configured scenario source and
print the scenes parsed from it.

With --text the scenario is read from a file ("-" for stdin) and parsed
locally; no remote service is called.`,
		Example: `  slideshow scenario "a cat discovers the sea"
  echo "Scene 1: Dawn. Scene 2: Dusk." | slideshow scenario --text -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScenario(cmd, strings.Join(args, " "), o)
		},
	}

	cmd.Flags().StringVar(&o.textPath, "text", "", `parse a scenario text file instead of calling a source ("-" for stdin)`)
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print JSON")

	return cmd
}

func (a *app) runScenario(cmd *cobra.Command, prompt string, o scenarioOptions) error {
	var out scenarioOutput

	if o.textPath != "" {
		text, err := readText(cmd.InOrStdin(), o.textPath)
		if err != nil {
			return err
		}
		out.Scenario = strings.TrimSpace(text)
		out.Scenes = scenario.ParseScript(text).Texts()
	} else {
		if strings.TrimSpace(prompt) == "" {
			return fmt.Errorf("%w: pass a prompt or --text", scenario.ErrPromptRequired)
		}
		sc, source, err := a.fetchScenario(cmd.Context(), prompt)
		if err != nil {
			return err
		}
		out = scenarioOutput{Source: source, Scenario: sc.Text, Scenes: sc.Script.Texts()}
	}

	w := cmd.OutOrStdout()
	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(out.Scenes) == 0 {
		fmt.Fprintln(w, "no scenes found")
		return nil
	}
	for i, s := range out.Scenes {
		fmt.Fprintf(w, "Scene %d: %s\n", i+1, s)
	}
	return nil
}

func readText(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 - path comes from the operator's command line
	}
	if err != nil {
		return "", fmt.Errorf("read scenario text: %w", err)
	}
	return string(data), nil
}
