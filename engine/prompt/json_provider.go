package prompt

import (
	"context"
	"fmt"
	"os"

	"github.com/mathieu007/dev-wizard-engine/engine/core"
	"github.com/tidwall/gjson"
)

// jsonProvider reads a JSON file and traverses a JSON Pointer (spec.md
// §4.5's "json" provider), expecting the pointed-at value to be an array
// of records, an array of scalars, or an object keyed by id.
type jsonProvider struct {
	repoRoot string
}

func (p *jsonProvider) Resolve(_ context.Context, cfg map[string]any) ([]map[string]any, error) {
	path := stringConfig(cfg, "path")
	if path == "" {
		return nil, core.NewError(nil, "PROMPT_JSON_PATH_MISSING", nil)
	}
	pointer := stringConfig(cfg, "pointer")

	data, err := os.ReadFile(resolveUnderRoot(p.repoRoot, path))
	if err != nil {
		return nil, core.NewError(err, "PROMPT_JSON_READ_FAILED", map[string]any{"path": path})
	}
	if !gjson.ValidBytes(data) {
		return nil, core.NewError(nil, "PROMPT_JSON_INVALID", map[string]any{"path": path})
	}

	target := gjson.ParseBytes(data)
	if pointer != "" {
		target = target.Get(jsonPointerToGJSON(pointer))
	}
	if !target.Exists() {
		return nil, core.NewError(nil, "PROMPT_JSON_POINTER_NOT_FOUND", map[string]any{"pointer": pointer})
	}

	var records []map[string]any
	if target.IsArray() {
		for _, item := range target.Array() {
			records = append(records, recordFromResult(item))
		}
		return records, nil
	}
	if target.IsObject() {
		target.ForEach(func(key, value gjson.Result) bool {
			rec := recordFromResult(value)
			if _, ok := rec["value"]; !ok {
				rec["value"] = key.String()
			}
			if _, ok := rec["label"]; !ok {
				rec["label"] = key.String()
			}
			records = append(records, rec)
			return true
		})
		return records, nil
	}
	return []map[string]any{recordFromResult(target)}, nil
}

// recordFromResult normalizes a gjson.Result into a {value,label} record:
// objects pass their fields through verbatim, scalars become {value:v,
// label:string(v)}.
func recordFromResult(r gjson.Result) map[string]any {
	if r.IsObject() {
		rec := make(map[string]any)
		r.ForEach(func(key, value gjson.Result) bool {
			rec[key.String()] = value.Value()
			return true
		})
		if _, ok := rec["label"]; !ok {
			if v, ok := rec["value"]; ok {
				rec["label"] = toLabel(v)
			}
		}
		return rec
	}
	v := r.Value()
	return map[string]any{"value": v, "label": toLabel(v)}
}

func toLabel(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// jsonPointerToGJSON converts an RFC 6901 JSON Pointer ("/a/b/0") into
// gjson's dotted path syntax ("a.b.0").
func jsonPointerToGJSON(pointer string) string {
	if len(pointer) == 0 {
		return pointer
	}
	p := pointer
	if p[0] == '/' {
		p = p[1:]
	}
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '/':
			out = append(out, '.')
		default:
			out = append(out, p[i])
		}
	}
	return string(out)
}
