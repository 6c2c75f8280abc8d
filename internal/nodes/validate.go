package nodes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hybrid_copilot/internal/core"
	"hybrid_copilot/internal/logger"

	"github.com/bytedance/sonic"
)

var numberNoise = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "")

// Validate checks the synthesized answer and returns the issues found, in
// check order. Every check runs.
func Validate(s *core.Session) []string {
	issues := []string{}

	if s.FormatHint == "number" && !isNumeric(s.FinalAnswer) {
		issues = append(issues, "Answer should be a number")
	}

	if _, err := sonic.ConfigStd.Marshal(s.FinalAnswer); err != nil {
		issues = append(issues, "Answer is not JSON serializable")
	}

	if s.Mode.NeedsRetrieval() && len(s.Citations) == 0 {
		issues = append(issues, "Missing citations")
	}

	if s.Mode.NeedsQuery() {
		if s.QueryResult.Failed() {
			issues = append(issues, "SQL error: "+s.QueryResult.Error)
		}
		if len(s.QueryResult.Rows) == 0 {
			issues = append(issues, "SQL returned no rows")
		}
	}

	return issues
}

func isNumeric(answer any) bool {
	text := strings.TrimSpace(numberNoise.Replace(fmt.Sprint(answer)))
	_, err := strconv.ParseFloat(text, 64)
	return err == nil
}

// ValidatorNode decides whether the run is done
type ValidatorNode struct {
	maxAttempts  int
	maxSyntheses int
}

// NewValidatorNode creates a new validator node
func NewValidatorNode(maxAttempts, maxSyntheses int) *ValidatorNode {
	return &ValidatorNode{maxAttempts: maxAttempts, maxSyntheses: maxSyntheses}
}

// Execute records the issues and sets Done when there are none or a cap
// is reached
func (v *ValidatorNode) Execute(_ context.Context, s *core.Session) (*core.Session, error) {
	issues := Validate(s)
	s.Issues = issues
	s.Done = len(issues) == 0 || s.Attempts >= v.maxAttempts || s.Syntheses >= v.maxSyntheses

	if s.Done && len(issues) > 0 {
		logger.Warn().
			Str("run_id", s.RunID).
			Int("attempts", s.Attempts).
			Int("syntheses", s.Syntheses).
			Strs("issues", issues).
			Msg("Repair limit reached with unresolved issues")
	}

	s.Record(core.NodeValidator, map[string]any{
		"issues":   issues,
		"done":     s.Done,
		"attempts": s.Attempts,
	})

	return s, nil
}

// GetName returns the node name
func (v *ValidatorNode) GetName() string {
	return core.NodeValidator
}
