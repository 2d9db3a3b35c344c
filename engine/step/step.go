// Package step declares the tagged Step union consumed by both the plan
// compiler (engine/plan) and the execution engine (engine/exec), so the two
// walkers can never drift on which step kinds exist.
package step

import "gopkg.in/yaml.v3"

// Kind discriminates a Step's variant. Builtins are listed in spec.md §3;
// anything else is routed to a PluginRegistry handler.
type Kind string

const (
	KindPrompt            Kind = "prompt"
	KindCommand           Kind = "command"
	KindMessage           Kind = "message"
	KindBranch            Kind = "branch"
	KindGroup             Kind = "group"
	KindIterate           Kind = "iterate"
	KindCompute           Kind = "compute"
	KindGitWorktreeGuard  Kind = "git-worktree-guard"
)

// IsBuiltin reports whether kind names one of the built-in step variants;
// any other value is dispatched through the plugin registry.
func (k Kind) IsBuiltin() bool {
	switch k {
	case KindPrompt, KindCommand, KindMessage, KindBranch, KindGroup, KindIterate, KindCompute, KindGitWorktreeGuard:
		return true
	default:
		return false
	}
}

// Step is the tagged variant shared by every step in a Flow. Exactly one of
// the *Spec fields is populated, selected by Type. Plugin steps (Type not a
// builtin) leave every *Spec field nil and carry their raw fields in Plugin.
type Step struct {
	ID          string         `json:"id"                    yaml:"id"`
	Type        Kind           `json:"type"                  yaml:"type"`
	Label       string         `json:"label,omitempty"       yaml:"label,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"    yaml:"metadata,omitempty"`

	Prompt  *PromptSpec  `json:"-" yaml:"-"`
	Command *CommandSpec `json:"-" yaml:"-"`
	Message *MessageSpec `json:"-" yaml:"-"`
	Branch  *BranchSpec  `json:"-" yaml:"-"`
	Group   *GroupSpec   `json:"-" yaml:"-"`
	Iterate *IterateSpec `json:"-" yaml:"-"`
	Compute *ComputeSpec `json:"-" yaml:"-"`
	Guard   *GuardSpec   `json:"-" yaml:"-"`
	Plugin  map[string]any `json:"-" yaml:"-"`
}

// UnmarshalYAML decodes a Step's common envelope fields, then dispatches
// the remaining fields into the *Spec matching Type — the tagged-union
// decode this package's contract depends on (spec.md §9: "do not emulate
// via a base interface with virtual dispatch on each field").
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if v, ok := raw["id"].(string); ok {
		s.ID = v
	}
	if v, ok := raw["type"].(string); ok {
		s.Type = Kind(v)
	}
	if v, ok := raw["label"].(string); ok {
		s.Label = v
	}
	if v, ok := raw["description"].(string); ok {
		s.Description = v
	}
	if v, ok := raw["metadata"].(map[string]any); ok {
		s.Metadata = v
	}
	decode := func(target any) error {
		b, err := yaml.Marshal(raw)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(b, target)
	}
	switch s.Type {
	case KindPrompt:
		spec := &PromptSpec{}
		if err := decode(spec); err != nil {
			return err
		}
		s.Prompt = spec
	case KindCommand:
		spec := &CommandSpec{}
		if err := decode(spec); err != nil {
			return err
		}
		s.Command = spec
	case KindMessage:
		spec := &MessageSpec{}
		if err := decode(spec); err != nil {
			return err
		}
		s.Message = spec
	case KindBranch:
		spec := &BranchSpec{}
		if err := decode(spec); err != nil {
			return err
		}
		s.Branch = spec
	case KindGroup:
		spec := &GroupSpec{}
		if err := decode(spec); err != nil {
			return err
		}
		s.Group = spec
	case KindIterate:
		spec := &IterateSpec{}
		if err := decode(spec); err != nil {
			return err
		}
		s.Iterate = spec
	case KindCompute:
		spec := &ComputeSpec{}
		if err := decode(spec); err != nil {
			return err
		}
		s.Compute = spec
	case KindGitWorktreeGuard:
		spec := &GuardSpec{}
		if err := decode(spec); err != nil {
			return err
		}
		s.Guard = spec
	default:
		s.Plugin = raw
	}
	return nil
}

// WorkflowMetadata is the free-form {id,label?,category?,includeInAll?}
// object a step's metadata map may carry for integration-timing aggregation.
// It is read opaquely, never validated against a schema.
type WorkflowMetadata struct {
	ID           string `json:"id"`
	Label        string `json:"label,omitempty"`
	Category     string `json:"category,omitempty"`
	IncludeInAll bool   `json:"includeInAll,omitempty"`
}

// WorkflowMetadata extracts and normalizes the {workflow: {...}} entry from
// Metadata, returning false when absent or malformed.
func (s *Step) WorkflowMetadata() (WorkflowMetadata, bool) {
	raw, ok := s.Metadata["workflow"]
	if !ok {
		return WorkflowMetadata{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return WorkflowMetadata{}, false
	}
	wf := WorkflowMetadata{}
	if id, ok := m["id"].(string); ok {
		wf.ID = id
	}
	if wf.ID == "" {
		return WorkflowMetadata{}, false
	}
	if label, ok := m["label"].(string); ok {
		wf.Label = label
	}
	if cat, ok := m["category"].(string); ok {
		wf.Category = cat
	}
	if inc, ok := m["includeInAll"].(bool); ok {
		wf.IncludeInAll = inc
	}
	return wf, true
}

// Next is a jump target: "", "exit", "repeat", or a step id in the same flow.
type Next string

const (
	NextUndefined Next = ""
	NextExit      Next = "exit"
	NextRepeat    Next = "repeat"
)

// MessageSpec backs the "message" step kind.
type MessageSpec struct {
	Level Level  `json:"level,omitempty" yaml:"level,omitempty"`
	Text  string `json:"text"             yaml:"text"`
	Next  Next   `json:"next,omitempty"  yaml:"next,omitempty"`
}

// Level is the severity of a message step or a logged note.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// BranchClause is one entry of a branch step's branches list.
type BranchClause struct {
	When        string `json:"when"                  yaml:"when"`
	Next        Next   `json:"next"                  yaml:"next"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// BranchSpec backs the "branch" step kind.
type BranchSpec struct {
	Branches    []BranchClause `json:"branches"              yaml:"branches"`
	DefaultNext Next           `json:"defaultNext,omitempty" yaml:"defaultNext,omitempty"`
}

// GroupSpec backs the "group" step kind: run a named flow as a unit.
type GroupSpec struct {
	Flow string `json:"flow" yaml:"flow"`
}

// IterateSource selects where an iterate step's items come from.
type IterateSource struct {
	From    string         `json:"from"              yaml:"from"`
	AnswersKey string      `json:"answersKey,omitempty" yaml:"answersKey,omitempty"`
	JSON    *JSONSource    `json:"json,omitempty"    yaml:"json,omitempty"`
	Dynamic *DynamicSource `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
}

// JSONSource reads a JSON file and traverses a pointer/path.
type JSONSource struct {
	Path    string `json:"path"    yaml:"path"`
	Pointer string `json:"pointer" yaml:"pointer"`
}

// DynamicSource names a dynamic prompt-option provider (engine/prompt) reused
// as an iteration source.
type DynamicSource struct {
	Type   string         `json:"type"   yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// IterateSpec backs the "iterate" step kind.
type IterateSpec struct {
	Flow         string         `json:"flow"                   yaml:"flow"`
	Items        []any          `json:"items,omitempty"        yaml:"items,omitempty"`
	Source       *IterateSource `json:"source,omitempty"       yaml:"source,omitempty"`
	StoreEachAs  string         `json:"storeEachAs,omitempty"  yaml:"storeEachAs,omitempty"`
	Concurrency  int            `json:"concurrency,omitempty"  yaml:"concurrency,omitempty"`
	Over         string         `json:"over,omitempty"         yaml:"over,omitempty"`
}

// ComputeSpec backs the "compute" step kind. Exactly one of Values or
// Handler is set; a Handler-style step requires StoreAs.
type ComputeSpec struct {
	Values  map[string]any `json:"values,omitempty"  yaml:"values,omitempty"`
	Handler string         `json:"handler,omitempty" yaml:"handler,omitempty"`
	Params  map[string]any `json:"params,omitempty"  yaml:"params,omitempty"`
	StoreAs string         `json:"storeAs,omitempty" yaml:"storeAs,omitempty"`
	Next    Next           `json:"next,omitempty"    yaml:"next,omitempty"`
}

// GuardSpec backs the "git-worktree-guard" step kind.
type GuardSpec struct {
	Prompt          string `json:"prompt,omitempty"          yaml:"prompt,omitempty"`
	AllowCommit     bool   `json:"allowCommit,omitempty"     yaml:"allowCommit,omitempty"`
	AllowStash      bool   `json:"allowStash,omitempty"      yaml:"allowStash,omitempty"`
	AllowBranch     bool   `json:"allowBranch,omitempty"     yaml:"allowBranch,omitempty"`
	AllowProceed    bool   `json:"allowProceed,omitempty"    yaml:"allowProceed,omitempty"`
	StoreStrategyAs string `json:"storeStrategyAs,omitempty" yaml:"storeStrategyAs,omitempty"`
	CWD             string `json:"cwd,omitempty"             yaml:"cwd,omitempty"`
}

// AnyStrategyEnabled reports whether the guard allows at least one recovery
// strategy, an invariant enforced at schema-validation time.
func (g GuardSpec) AnyStrategyEnabled() bool {
	return g.AllowCommit || g.AllowStash || g.AllowBranch || g.AllowProceed
}

// CommandSpec backs the "command" step kind.
type CommandSpec struct {
	Commands        []CommandDescriptor `json:"commands"                   yaml:"commands"`
	Defaults        *CommandPreset      `json:"defaults,omitempty"         yaml:"defaults,omitempty"`
	ContinueOnError bool                `json:"continueOnError,omitempty"  yaml:"continueOnError,omitempty"`
	CollectSafe     bool                `json:"collectSafe,omitempty"      yaml:"collectSafe,omitempty"`
	OnSuccess       *OnSuccess          `json:"onSuccess,omitempty"        yaml:"onSuccess,omitempty"`
	OnError         *OnError            `json:"onError,omitempty"          yaml:"onError,omitempty"`
	Summary         string              `json:"summary,omitempty"          yaml:"summary,omitempty"`
}

// OnSuccess is the transition taken after every command descriptor succeeds.
type OnSuccess struct {
	Next Next `json:"next,omitempty" yaml:"next,omitempty"`
}

// AutoAction is one entry of onError.auto's retry/default/transition/exit
// strategy table.
type AutoAction struct {
	Strategy string `json:"strategy"         yaml:"strategy"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Limit    int    `json:"limit,omitempty"  yaml:"limit,omitempty"`
}

// OnErrorAction is one entry offered interactively alongside the fixed
// Skip/Replay/Abort shortcuts.
type OnErrorAction struct {
	ID     string `json:"id"     yaml:"id"`
	Label  string `json:"label"  yaml:"label"`
	Next   Next   `json:"next"   yaml:"next"`
}

// OnErrorPolicy maps an answers value at Key through Map (fallback Default)
// to a transition.
type OnErrorPolicy struct {
	Key      string            `json:"key"      yaml:"key"`
	Map      map[string]string `json:"map"      yaml:"map"`
	Default  string            `json:"default,omitempty"  yaml:"default,omitempty"`
	Required bool              `json:"required,omitempty" yaml:"required,omitempty"`
}

// OnError describes the full command-failure recovery contract for a step.
type OnError struct {
	Auto    *AutoAction      `json:"auto,omitempty"    yaml:"auto,omitempty"`
	Policy  *OnErrorPolicy   `json:"policy,omitempty"  yaml:"policy,omitempty"`
	Actions []OnErrorAction  `json:"actions,omitempty" yaml:"actions,omitempty"`
	DefaultNext *OnSuccess   `json:"defaultNext,omitempty" yaml:"defaultNext,omitempty"`
}
