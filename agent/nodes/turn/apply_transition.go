package turnnode

import (
	"fmt"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

// ApplyTransition folds the specialist's outcome into the working state:
// patient attachment (first resolution wins), the assistant turn itself, and
// the intake-to-clinical handoff. The handoff is one-way; a clinical session
// only loops back to clinical.
func ApplyTransition(in *GraphState) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.Response.Patient != nil {
		if in.State.AttachPatient(in.Response.Patient) {
			in.AttachedPatient = in.Response.Patient
		}
	}

	in.State.AppendAssistant(in.RespondedBy, in.Response.Message)

	if in.RespondedBy == statex.AgentIntake && in.Response.Handoff {
		in.State.HandoffToClinical = true
		in.State.ActiveAgent = statex.AgentClinical
	}

	in.State.Touch(in.Now)
	if err := in.State.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}
