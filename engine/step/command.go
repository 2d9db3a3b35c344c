package step

import "github.com/mathieu007/dev-wizard-engine/engine/core"

// StoreWhen controls when a command's captured stdout is written into answers.
type StoreWhen string

const (
	StoreWhenSuccess StoreWhen = "success"
	StoreWhenFailure StoreWhen = "failure"
	StoreWhenAlways  StoreWhen = "always"
)

// ParseJSONOnError selects how a failed stdout JSON parse is handled.
type ParseJSONOnError string

const (
	ParseJSONOnErrorWarn ParseJSONOnError = "warn"
	ParseJSONOnErrorFail ParseJSONOnError = "fail"
)

// DryRunStrategy selects how a command descriptor behaves when a plan or
// executor run is in dry-run mode.
type DryRunStrategy string

const (
	DryRunStrategySkip    DryRunStrategy = "skip"
	DryRunStrategyExecute DryRunStrategy = "execute"
)

// ParseJSON is either a bare bool or a {onError, reviver} object; both forms
// appear in wizard configuration documents.
type ParseJSON struct {
	Enabled bool             `json:"-" yaml:"-"`
	OnError ParseJSONOnError `json:"onError,omitempty" yaml:"onError,omitempty"`
	Reviver string           `json:"reviver,omitempty" yaml:"reviver,omitempty"`
}

// CommandKnobs holds every field a CommandDescriptor and a CommandPreset
// share. CommandPreset embeds it directly; CommandDescriptor embeds it and
// adds Run plus preset-only concerns.
type CommandKnobs struct {
	Name            string         `json:"name,omitempty"            yaml:"name,omitempty"`
	CWD             string         `json:"cwd,omitempty"             yaml:"cwd,omitempty"`
	Env             core.EnvMap    `json:"env,omitempty"             yaml:"env,omitempty"`
	Shell           *bool          `json:"shell,omitempty"           yaml:"shell,omitempty"`
	ContinueOnFail  bool           `json:"continueOnFail,omitempty"  yaml:"continueOnFail,omitempty"`
	TimeoutMs       int            `json:"timeoutMs,omitempty"       yaml:"timeoutMs,omitempty"`
	CaptureStdout   bool           `json:"captureStdout,omitempty"   yaml:"captureStdout,omitempty"`
	Quiet           bool           `json:"quiet,omitempty"           yaml:"quiet,omitempty"`
	WarnAfterMs     int            `json:"warnAfterMs,omitempty"     yaml:"warnAfterMs,omitempty"`
	StoreStdoutAs   string         `json:"storeStdoutAs,omitempty"   yaml:"storeStdoutAs,omitempty"`
	ParseJSON       *ParseJSON     `json:"parseJson,omitempty"       yaml:"parseJson,omitempty"`
	StoreWhen       StoreWhen      `json:"storeWhen,omitempty"       yaml:"storeWhen,omitempty"`
	RedactKeys      []string       `json:"redactKeys,omitempty"      yaml:"redactKeys,omitempty"`
	DryRunStrategy  DryRunStrategy `json:"dryRunStrategy,omitempty"  yaml:"dryRunStrategy,omitempty"`
}

// CommandDescriptor is one entry in a command step's commands list. Preset
// (when set) contributes only default knobs (env, cwd, shell, timeouts) —
// it never supplies Run itself, so every descriptor must carry one.
type CommandDescriptor struct {
	CommandKnobs `json:",inline" yaml:",inline"`
	Run          string `json:"run"              yaml:"run"              validate:"required"`
	Preset       string `json:"preset,omitempty" yaml:"preset,omitempty"`
}

// CommandPreset is a reusable bundle of CommandDescriptor defaults. It must
// never declare Preset itself (validated at schema time in engine/composer).
type CommandPreset struct {
	CommandKnobs `json:",inline" yaml:",inline"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"        yaml:"tags,omitempty"`
}

// Clone returns a shallow-frozen copy with Env and Tags copied, matching the
// "shallow-frozen with copied env and tags" resolution contract.
func (p CommandPreset) Clone() CommandPreset {
	out := p
	out.Env = p.Env.Clone()
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	return out
}

// IsShellEnabled reports the effective shell flag, defaulting to false.
func (k CommandKnobs) IsShellEnabled() bool {
	return k.Shell != nil && *k.Shell
}
