package core

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

// EnvMap is a set of environment variables attached to a preset, a flow, or
// a single command descriptor.
type EnvMap map[string]string

// NewEnvFromFile reads a .env file rooted at cwd, returning an empty map
// (not an error) when the file does not exist.
func NewEnvFromFile(cwd string) (EnvMap, error) {
	envPath := filepath.Join(cwd, ".env")
	envMap, err := godotenv.Read(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(EnvMap), nil
		}
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return EnvMap(envMap), nil
}

// Merge overlays other on top of e, with other's keys winning.
func (e EnvMap) Merge(other EnvMap) (EnvMap, error) {
	result := make(EnvMap, len(e)+len(other))
	for k, v := range e {
		result[k] = v
	}
	if err := mergo.Merge(&result, other, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge env: %w", err)
	}
	return result, nil
}

func (e EnvMap) Prop(key string) string {
	if e == nil {
		return ""
	}
	return e[key]
}

func (e EnvMap) Clone() EnvMap {
	out := make(EnvMap, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func (e EnvMap) AsMap() map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// EnvSource identifies which layer of a merged env a key came from.
type EnvSource string

const (
	EnvSourcePreset   EnvSource = "preset"
	EnvSourceDefaults EnvSource = "defaults"
	EnvSourceCommand  EnvSource = "command"
)

// EnvDiffEntry records the provenance of a single merged env key (spec's
// envDiff requirement for command descriptor env resolution).
type EnvDiffEntry struct {
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Previous string    `json:"previous,omitempty"`
	Source   EnvSource `json:"source"`
}

// MergeEnvLayers merges preset, defaults and command env maps in that
// precedence order (command wins last), returning the merged map plus a
// diff recording which layer owns the final value for every key.
func MergeEnvLayers(preset, defaults, command EnvMap) (EnvMap, []EnvDiffEntry) {
	result := make(EnvMap)
	owners := make(map[string]*EnvDiffEntry)
	apply := func(layer EnvMap, src EnvSource) {
		for k, v := range layer {
			prev := result[k]
			result[k] = v
			owners[k] = &EnvDiffEntry{Key: k, Value: v, Previous: prev, Source: src}
		}
	}
	apply(preset, EnvSourcePreset)
	apply(defaults, EnvSourceDefaults)
	apply(command, EnvSourceCommand)
	diff := make([]EnvDiffEntry, 0, len(owners))
	for _, d := range owners {
		diff = append(diff, *d)
	}
	return result, diff
}
