// Package policy compiles policies.rules into matchers and evaluates
// pre-execution command gating, grounded on the teacher's
// schema.NewCompositeValidator composition style and its per-instance
// stateful structs (engine/domain/task.State).
package policy

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
)

// Level is a policy rule's configured enforcement tier.
type Level string

const (
	LevelAllow Level = "allow"
	LevelWarn  Level = "warn"
	LevelBlock Level = "block"
)

// Match describes the selectors a rule must satisfy to apply.
type Match struct {
	Command        []string `json:"command,omitempty"        yaml:"command,omitempty"`
	CommandPattern []string `json:"commandPattern,omitempty" yaml:"commandPattern,omitempty"`
	Preset         []string `json:"preset,omitempty"          yaml:"preset,omitempty"`
	Flow           []string `json:"flow,omitempty"            yaml:"flow,omitempty"`
	Step           []string `json:"step,omitempty"            yaml:"step,omitempty"`
}

// Rule is one entry of policies.rules, in declaration order.
type Rule struct {
	ID    string `json:"id"              yaml:"id"`
	Level Level  `json:"level"           yaml:"level"`
	Match Match  `json:"match"           yaml:"match"`
	Note  string `json:"note,omitempty"  yaml:"note,omitempty"`
}

// Policies is the top-level policies block of a Config.
type Policies struct {
	DefaultLevel Level  `json:"defaultLevel,omitempty" yaml:"defaultLevel,omitempty"`
	Rules        []Rule `json:"rules,omitempty"        yaml:"rules,omitempty"`
}

// compiledRule pre-compiles a Rule's selectors into sets/regexes so
// Evaluate never re-compiles on the hot path.
type compiledRule struct {
	rule            Rule
	commandSet      map[string]bool
	presetSet       map[string]bool
	flowSet         map[string]bool
	stepSet         map[string]bool
	commandPatterns []*regexp.Regexp
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func compile(rule Rule) (*compiledRule, error) {
	cr := &compiledRule{
		rule:       rule,
		commandSet: toSet(rule.Match.Command),
		presetSet:  toSet(rule.Match.Preset),
		flowSet:    toSet(rule.Match.Flow),
		stepSet:    toSet(rule.Match.Step),
	}
	for _, pattern := range rule.Match.CommandPattern {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, core.NewError(err, "POLICY_PATTERN_INVALID", map[string]any{
				"rule":    rule.ID,
				"pattern": pattern,
			})
		}
		cr.commandPatterns = append(cr.commandPatterns, re)
	}
	return cr, nil
}

func matchSet(set map[string]bool, value string) bool {
	if set == nil {
		return true
	}
	if value == "" {
		return false
	}
	return set[value]
}

func (cr *compiledRule) matches(q Query) bool {
	if !matchSet(cr.commandSet, q.Command) {
		return false
	}
	if !matchSet(cr.presetSet, q.Preset) {
		return false
	}
	if !matchSet(cr.flowSet, q.FlowID) {
		return false
	}
	if !matchSet(cr.stepSet, q.StepID) {
		return false
	}
	if len(cr.commandPatterns) > 0 {
		matched := false
		for _, re := range cr.commandPatterns {
			if re.MatchString(q.Command) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Query is the (flowId, stepId, command, preset?) tuple evaluated against
// the compiled rule table.
type Query struct {
	FlowID  string
	StepID  string
	Command string
	Preset  string
}

// Decision is the outcome of evaluating a Query against the engine's rules.
type Decision struct {
	Rule          *Rule
	Level         Level
	EnforcedLevel Level
	Acknowledged  bool
	Note          string
}

// Engine evaluates policy queries and tracks which block rules have been
// acknowledged for the lifetime of a single executor instance.
type Engine struct {
	defaultLevel Level
	rules        []*compiledRule
	mu           sync.Mutex
	acknowledged map[string]bool
}

// NewEngine compiles policies into an Engine ready for Evaluate.
func NewEngine(policies *Policies) (*Engine, error) {
	e := &Engine{
		defaultLevel: LevelAllow,
		acknowledged: make(map[string]bool),
	}
	if policies == nil {
		return e, nil
	}
	if policies.DefaultLevel != "" {
		e.defaultLevel = policies.DefaultLevel
	}
	for _, rule := range policies.Rules {
		cr, err := compile(rule)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, cr)
	}
	return e, nil
}

// Evaluate returns the first matching rule's decision, or a decision with
// no rule at the engine's default level (allow unless policies.defaultLevel
// sets another) when nothing matches.
func (e *Engine) Evaluate(q Query) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cr := range e.rules {
		if !cr.matches(q) {
			continue
		}
		rule := cr.rule
		ack := e.acknowledged[rule.ID]
		enforced := rule.Level
		if rule.Level == LevelBlock && ack {
			enforced = LevelWarn
		}
		return Decision{
			Rule:          &rule,
			Level:         rule.Level,
			EnforcedLevel: enforced,
			Acknowledged:  ack,
			Note:          rule.Note,
		}
	}
	return Decision{Level: e.defaultLevel, EnforcedLevel: e.defaultLevel}
}

// Acknowledge persists, for the lifetime of this Engine, that ruleID's
// block decisions should be downgraded to warn.
func (e *Engine) Acknowledge(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acknowledged[ruleID] = true
}

// IsAcknowledged reports whether ruleID has previously been acknowledged.
func (e *Engine) IsAcknowledged(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acknowledged[ruleID]
}

// String renders a Decision for log notes.
func (d Decision) String() string {
	if d.Rule == nil {
		return fmt.Sprintf("policy: %s (no matching rule)", d.EnforcedLevel)
	}
	return fmt.Sprintf("policy: rule=%s level=%s enforced=%s acknowledged=%t", d.Rule.ID, d.Level, d.EnforcedLevel, d.Acknowledged)
}
