package state

import "strings"

// handoffCues is the fixed phrase set that signals the intake specialist is
// passing the session to the clinical specialist. Detection is a heuristic
// over free model text, so false negatives and false positives are possible;
// the match deliberately stays a dumb case-insensitive substring check.
var handoffCues = []string{
	"clinical agent",
	"connect you",
}

// ContainsHandoffCue reports whether reply text announces a handoff. Pure
// function, kept isolated so a structured signal can replace it later
// without touching the state machine.
func ContainsHandoffCue(text string) bool {
	lowered := strings.ToLower(text)
	for _, cue := range handoffCues {
		if strings.Contains(lowered, cue) {
			return true
		}
	}
	return false
}

// ResolveOwnership derives the active specialist and handoff flag from a
// transcript by scanning backwards for the most recent assistant turn.
// A clinical-authored turn, or an intake-authored turn whose text carries a
// handoff cue, means the session already belongs to the clinical specialist.
// With no assistant turn at all the session is in its initial intake state.
func ResolveOwnership(messages []Message) (AgentName, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != RoleAssistant {
			continue
		}
		if m.Agent == AgentClinical {
			return AgentClinical, true
		}
		if m.Agent == AgentIntake && ContainsHandoffCue(m.Content) {
			return AgentClinical, true
		}
		return AgentIntake, false
	}
	return AgentIntake, false
}
