package turnnode

import (
	"context"
	"fmt"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

// RunSpecialist dispatches the turn to whichever agent owns the session.
// RespondedBy is captured before any transition so the reply is always
// attributed to its author, not to the agent taking over next turn.
func RunSpecialist(ctx context.Context, in *GraphState, models contractx.Registry) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	var specialist contractx.Specialist
	switch in.State.ActiveAgent {
	case statex.AgentClinical:
		specialist = models.Clinical()
	default:
		specialist = models.Intake()
	}

	in.RespondedBy = in.State.ActiveAgent
	resp, err := specialist.Respond(ctx, contractx.SpecialistRequest{
		State:       in.State,
		UserMessage: in.Text,
	})
	if err != nil {
		return nil, err
	}

	in.Response = resp
	return in, nil
}
