package prompt

import (
	"context"
	"encoding/json"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
)

// commandProvider runs an external process (spec.md §4.5's "command"
// provider) and parses its captured stdout as a JSON array of records.
// Preview/dry-run contexts never construct a runner (spec.md §4.3: this
// provider is preview-only and marked rather than invoked during plan
// compilation); Resolve fails fast if no runner is wired.
type commandProvider struct {
	repoRoot string
	runner   wizard.CommandRunner
}

func (p *commandProvider) Resolve(ctx context.Context, cfg map[string]any) ([]map[string]any, error) {
	if p.runner == nil {
		return nil, core.NewError(nil, "PROMPT_COMMAND_PREVIEW_ONLY", nil)
	}
	run := stringConfig(cfg, "command")
	if run == "" {
		return nil, core.NewError(nil, "PROMPT_COMMAND_MISSING", nil)
	}
	res, err := p.runner.Run(ctx, wizard.RunRequest{Run: run, CWD: p.repoRoot, Shell: true})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, core.NewError(nil, "PROMPT_COMMAND_FAILED", map[string]any{"exitCode": res.ExitCode, "stderr": res.Stderr})
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(res.Stdout), &records); err != nil {
		return nil, core.NewError(err, "PROMPT_COMMAND_OUTPUT_INVALID", nil)
	}
	return records, nil
}
