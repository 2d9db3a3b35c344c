// Package scenario holds Scenario, a named composition of flows with
// optional post-run hooks and identity metadata.
package scenario

// PostRunWhen selects which overall run outcomes trigger a post-run hook.
type PostRunWhen string

const (
	PostRunAlways    PostRunWhen = "always"
	PostRunOnSuccess PostRunWhen = "on-success"
	PostRunOnFailure PostRunWhen = "on-failure"
)

// PostRunHook names a flow to run after the scenario's main flows, gated by
// When against the overall run outcome so far.
type PostRunHook struct {
	Flow string      `json:"flow" yaml:"flow"`
	When PostRunWhen `json:"when" yaml:"when"`
}

// IdentitySegment is one component of a composed Identity, e.g. a chosen
// workspace project or a release channel.
type IdentitySegment struct {
	ID      string `json:"id"                yaml:"id"`
	Value   string `json:"value"             yaml:"value"`
	Label   string `json:"label,omitempty"   yaml:"label,omitempty"`
	Details any    `json:"details,omitempty" yaml:"details,omitempty"`
	Source  string `json:"source,omitempty"  yaml:"source,omitempty"`
}

// Identity is an optional {slug, segments} descriptor a scenario assembles
// for display and for persistence/checkpoint naming.
type Identity struct {
	Slug     string            `json:"slug"     yaml:"slug"`
	Segments []IdentitySegment `json:"segments" yaml:"segments"`
}

// Scenario is a named composition of flows.
type Scenario struct {
	ID          string        `json:"id"                    yaml:"id"`
	Label       string        `json:"label"                 yaml:"label"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Flow        string        `json:"flow"                  yaml:"flow"`
	Flows       []string      `json:"flows,omitempty"       yaml:"flows,omitempty"`
	Tags        []string      `json:"tags,omitempty"        yaml:"tags,omitempty"`
	Shortcuts   map[string]string `json:"shortcuts,omitempty" yaml:"shortcuts,omitempty"`
	PostRun     []PostRunHook `json:"postRun,omitempty"     yaml:"postRun,omitempty"`
	Identity    *Identity     `json:"identity,omitempty"    yaml:"identity,omitempty"`
}

// FlowSequence returns the ordered list of flow ids this scenario executes
// during its "scenario" phase: the base flow followed by the chained flows.
func (s *Scenario) FlowSequence() []string {
	seq := make([]string, 0, 1+len(s.Flows))
	seq = append(seq, s.Flow)
	seq = append(seq, s.Flows...)
	return seq
}
