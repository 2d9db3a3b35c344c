package composer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"gopkg.in/yaml.v3"
)

// rawDocument is the generic shape every source file parses into before
// being interpreted as a (partial) Config.
type rawDocument struct {
	Meta           map[string]any   `yaml:"meta"`
	Scenarios      []map[string]any `yaml:"scenarios"`
	Flows          map[string]any   `yaml:"flows"`
	CommandPresets map[string]any   `yaml:"commandPresets"`
	Policies       map[string]any   `yaml:"policies"`
	Plugins        []map[string]any `yaml:"plugins"`
	Imports        []string         `yaml:"imports"`
}

// parseFile dispatches on file extension: .yaml/.yml/.json decode directly
// as YAML (a superset of JSON); .json5 goes through the tolerant
// comment/trailing-comma stripper first; unknown extensions are decoded as
// plain YAML and, only if that fails, again after the stripper.
func parseFile(path string, contents []byte) (*rawDocument, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
		return decodeYAML(path, contents)
	case ".json5":
		return decodeYAML(path, stripJSON5Comments(contents))
	default:
		doc, err := decodeYAML(path, contents)
		if err == nil {
			return doc, nil
		}
		return decodeYAML(path, stripJSON5Comments(contents))
	}
}

func decodeYAML(path string, contents []byte) (*rawDocument, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(contents, &doc); err != nil {
		return nil, core.NewError(err, "CONFIG_PARSE_FAILED", map[string]any{
			"filePath": path,
		})
	}
	return &doc, nil
}

// SchemaIssue is one path-qualified validation failure.
type SchemaIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// validateDocument performs the minimal structural checks a parsed document
// must satisfy before it participates in merge: scenario entries carry an
// id and a flow reference, presets don't nest "preset". Flow entries are not
// checked here.
func validateDocument(path string, doc *rawDocument) []SchemaIssue {
	var issues []SchemaIssue
	for i, sc := range doc.Scenarios {
		if _, ok := sc["id"].(string); !ok {
			issues = append(issues, SchemaIssue{
				Path:    fmt.Sprintf("scenarios[%d].id", i),
				Message: "scenario is missing a string id",
			})
		}
		if _, ok := sc["flow"].(string); !ok {
			issues = append(issues, SchemaIssue{
				Path:    fmt.Sprintf("scenarios[%d].flow", i),
				Message: "scenario is missing a flow reference",
			})
		}
	}
	for name, raw := range doc.CommandPresets {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if _, has := m["preset"]; has {
			issues = append(issues, SchemaIssue{
				Path:    fmt.Sprintf("commandPresets.%s.preset", name),
				Message: "a command preset must not declare preset",
			})
		}
	}
	return issues
}
