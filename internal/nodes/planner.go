package nodes

import (
	"context"
	"regexp"
	"strings"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/pkg"
)

// NoConstraints is the planner output when no passage carries a hint
const NoConstraints = "no specific constraints"

var monthYear = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}\b`)

// ExtractConstraints scans passages in order for month and year mentions
// and for KPI formula markers. It has no side effects.
func ExtractConstraints(passages []pkg.Passage) string {
	var parts []string
	for _, p := range passages {
		if dates := monthYear.FindAllString(p.Content, -1); len(dates) > 0 {
			parts = append(parts, "Relevant dates: "+strings.Join(dates, ", "))
		}
		if strings.Contains(p.Content, "Formula:") || strings.Contains(p.Content, "SELECT") {
			parts = append(parts, "KPI formula found in "+p.Source)
		}
	}
	if len(parts) == 0 {
		return NoConstraints
	}
	return strings.Join(parts, "; ")
}

// PlannerNode derives query hints from the retrieved passages
type PlannerNode struct{}

// NewPlannerNode creates a new planner node
func NewPlannerNode() *PlannerNode {
	return &PlannerNode{}
}

// Execute sets the session constraints
func (p *PlannerNode) Execute(_ context.Context, s *core.Session) (*core.Session, error) {
	s.Constraints = ExtractConstraints(s.Passages)
	s.Record(core.NodePlanner, map[string]any{"constraints": s.Constraints})
	return s, nil
}

// GetName returns the node name
func (p *PlannerNode) GetName() string {
	return core.NodePlanner
}
