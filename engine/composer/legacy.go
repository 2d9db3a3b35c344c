package composer

import (
	"regexp"
	"strings"
)

var legacyPathRe = regexp.MustCompile(`packages/dev-wizard-core/examples/library/.+\.wizard\.ya?ml$`)

const legacyFileName = "shared-maintenance.flows.yaml"
const legacyContentMarker = "examples/library/scripts/"

// legacyWarning returns a non-empty warning string when path or contents
// match one of the legacy-path heuristics from spec.md §4.1; files still
// load normally either way.
func legacyWarning(path string, contents []byte) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if legacyPathRe.MatchString(normalized) {
		return "legacy config path matches packages/dev-wizard-core/examples/library: " + path
	}
	if strings.HasSuffix(normalized, "/"+legacyFileName) || normalized == legacyFileName {
		return "legacy config file name: " + legacyFileName
	}
	if strings.Contains(string(contents), legacyContentMarker) {
		return "config references legacy path " + legacyContentMarker + ": " + path
	}
	return ""
}
