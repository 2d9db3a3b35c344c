package exec

import (
	"encoding/json"
	"strings"

	"github.com/mathieu007/dev-wizard-engine/engine/state"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

const integrationTimingPrefix = "[integration][timing]"

// scrapeIntegrationTimings scans captured stdout line-by-line for
// `[integration][timing] <json>` payloads, attaching each to (flowId,stepId)
// and, when the step carries a workflow metadata block, to that workflow's
// id/label for later aggregation (engine/analytics).
func (e *Executor) scrapeIntegrationTimings(flowID, stepID, command, stdout string, s step.Step) {
	wf, hasWorkflow := s.WorkflowMetadata()
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, integrationTimingPrefix)
		if idx < 0 {
			continue
		}
		payload := strings.TrimSpace(line[idx+len(integrationTimingPrefix):])
		if payload == "" {
			continue
		}
		var metadata map[string]any
		if err := json.Unmarshal([]byte(payload), &metadata); err != nil {
			continue
		}
		timing := state.IntegrationTiming{
			FlowID:   flowID,
			StepID:   stepID,
			Command:  command,
			Metadata: metadata,
		}
		if hasWorkflow {
			timing.WorkflowID = wf.ID
			timing.WorkflowLabel = wf.Label
		}
		e.st.IntegrationTimings = append(e.st.IntegrationTimings, timing)
	}
}
