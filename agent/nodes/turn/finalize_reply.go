package turnnode

import (
	"fmt"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (contractx.TurnReply, error) {
	if in == nil || in.State == nil {
		return contractx.TurnReply{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	return contractx.TurnReply{
		SessionID:  in.SessionID,
		Reply:      in.Response.Message,
		Agent:      in.RespondedBy,
		Citations:  in.Response.Citations,
		SourceType: in.Response.SourceType,
	}, nil
}
