package registry

import (
	"encoding/json"

	"github.com/clawscan/clawscan/internal/skills"
	"github.com/clawscan/clawscan/internal/watch"
)

// ScanAllWithProgress runs every registered skill against path exactly as
// Registry.ScanAll does, broadcasting a ScanEvent to hub before and after
// each skill invocation so a connected management client can render live
// progress. hub may be nil, in which case this behaves exactly like
// r.ScanAll.
func ScanAllWithProgress(r *skills.Registry, path, runID string, hub *watch.Hub) []skills.SkillResult {
	params, _ := json.Marshal(skills.ScanParams{Path: path})
	skillList := r.List()
	results := make([]skills.SkillResult, 0, len(skillList))

	for _, s := range skillList {
		if hub != nil {
			hub.Broadcast(watch.ScanEvent{RunID: runID, Skill: s.Name(), Status: "started"})
		}

		out, err := s.Execute(params)
		results = append(results, skills.SkillResult{Name: s.Name(), Output: out, Err: err})

		if hub != nil {
			status := "completed"
			errMsg := ""
			if err != nil {
				status = "failed"
				errMsg = err.Error()
			}
			hub.Broadcast(watch.ScanEvent{
				RunID:    runID,
				Skill:    s.Name(),
				Status:   status,
				Findings: len(out.Findings),
				Error:    errMsg,
			})
		}
	}

	return results
}
