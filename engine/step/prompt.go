package step

// Mode selects the interaction style of a prompt step.
type Mode string

const (
	ModeInput       Mode = "input"
	ModeConfirm     Mode = "confirm"
	ModeSelect      Mode = "select"
	ModeMultiselect Mode = "multiselect"
)

// PersistScope selects where a prompt's answer is carried over across runs.
type PersistScope string

const (
	PersistScopeScenario PersistScope = "scenario"
	PersistScopeProject  PersistScope = "project"
)

// Persist configures cross-run answer carry-over for a single prompt step.
type Persist struct {
	Scope PersistScope `json:"scope" yaml:"scope"`
}

// Option is one static option offered to a select/multiselect prompt.
type Option struct {
	Value    any    `json:"value"              yaml:"value"`
	Label    string `json:"label"              yaml:"label"`
	Hint     string `json:"hint,omitempty"     yaml:"hint,omitempty"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// OptionMapping rewrites a raw provider record's fields into an Option via
// path expressions, e.g. {value: "id", label: "name"}.
type OptionMapping struct {
	Value       string `json:"value"                 yaml:"value"`
	Label       string `json:"label"                 yaml:"label"`
	Hint        string `json:"hint,omitempty"        yaml:"hint,omitempty"`
	DisableWhen string `json:"disableWhen,omitempty" yaml:"disableWhen,omitempty"`
}

// DynamicOptionsCacheMode selects the caching tier for a dynamic provider.
type DynamicOptionsCacheMode string

const (
	CacheSession DynamicOptionsCacheMode = "session"
	CacheAlways  DynamicOptionsCacheMode = "always"
	CacheTTL     DynamicOptionsCacheMode = "ttl"
)

// DynamicOptionsCache is the parsed cache directive: either the bare string
// "session"/"always" or an object {ttlMs}.
type DynamicOptionsCache struct {
	Mode  DynamicOptionsCacheMode `json:"-"`
	TTLMs int                     `json:"ttlMs,omitempty" yaml:"ttlMs,omitempty"`
}

// DynamicOptions names a dynamic prompt-option provider (engine/prompt).
type DynamicOptions struct {
	Type    string               `json:"type"             yaml:"type"`
	Config  map[string]any       `json:"config,omitempty" yaml:"config,omitempty"`
	Mapping *OptionMapping       `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	Cache   *DynamicOptionsCache `json:"cache,omitempty"  yaml:"cache,omitempty"`
}

// Validation holds the prompt-answer validation rules from spec.md §4.4.
type Validation struct {
	MinLength int    `json:"minLength,omitempty" yaml:"minLength,omitempty" validate:"gte=0"`
	MaxLength int    `json:"maxLength,omitempty" yaml:"maxLength,omitempty" validate:"gte=0"`
	Regex     string `json:"regex,omitempty"     yaml:"regex,omitempty"`
}

// PromptSpec backs the "prompt" step kind.
type PromptSpec struct {
	Mode               Mode            `json:"mode"                         yaml:"mode"                         validate:"required,oneof=input confirm select multiselect"`
	Prompt             string          `json:"prompt"                       yaml:"prompt"                       validate:"required"`
	Options            []Option        `json:"options,omitempty"            yaml:"options,omitempty"`
	Dynamic            *DynamicOptions `json:"dynamic,omitempty"            yaml:"dynamic,omitempty"`
	DefaultValue       any             `json:"defaultValue,omitempty"       yaml:"defaultValue,omitempty"`
	StoreAs            string          `json:"storeAs,omitempty"            yaml:"storeAs,omitempty"`
	Required           bool            `json:"required,omitempty"           yaml:"required,omitempty"`
	ShowSelectionOrder bool            `json:"showSelectionOrder,omitempty" yaml:"showSelectionOrder,omitempty"`
	Validation         *Validation     `json:"validation,omitempty"         yaml:"validation,omitempty"`
	Persist            *Persist        `json:"persist,omitempty"            yaml:"persist,omitempty"`
}

// AnswerKey returns the key an answer is stored/read under: StoreAs if set,
// otherwise the step's own id.
func (p *PromptSpec) AnswerKey(stepID string) string {
	if p.StoreAs != "" {
		return p.StoreAs
	}
	return stepID
}
