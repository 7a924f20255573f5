// Package intake implements the specialist that greets a patient, resolves
// their record, and decides when a session must pass to the clinical
// specialist.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/capability"
	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

const (
	notIdentified = "Not identified yet"

	replyAmbiguous  = "I found multiple patients with that name. Could you please provide your full name or date of birth?"
	replyNotFound   = "I couldn't find a record with that name. Could you please double-check the spelling?"
	replyLookupFail = "I'm sorry, I couldn't reach your records just now. Could you please try again in a moment?"
	replyDegraded   = "I'm sorry, something went wrong on my side. Could you please say that again?"
)

// Specialist is the intake agent.
type Specialist struct {
	runner compose.Runnable[map[string]any, *schema.Message]
	caps   *capability.Invoker
}

func New(ctx context.Context, chatModel einomodel.ToolCallingChatModel, systemPrompt string, caps *capability.Invoker) (*Specialist, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: intake prompt is empty", contractx.ErrPromptMissing)
	}
	if caps == nil {
		return nil, errors.New("capability invoker is required")
	}

	toolModel, err := chatModel.WithTools(lookupTools())
	if err != nil {
		return nil, fmt.Errorf("%w: bind intake tools: %v", contractx.ErrModelInvoke, err)
	}

	runner, err := compileIntakeGraph(ctx, toolModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile intake graph: %v", contractx.ErrModelInvoke, err)
	}

	return &Specialist{runner: runner, caps: caps}, nil
}

func (s *Specialist) Respond(ctx context.Context, req contractx.SpecialistRequest) (contractx.SpecialistResponse, error) {
	if req.State == nil {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: working state is nil", contractx.ErrValidation)
	}
	sessionID := req.State.SessionID

	input, err := json.Marshal(map[string]any{
		"user_message": req.UserMessage,
		"transcript":   transcript(req.State.Messages),
	})
	if err != nil {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: marshal intake payload: %v", contractx.ErrValidation, err)
	}

	msg, err := s.runner.Invoke(ctx, map[string]any{
		"input":           string(input),
		"patient_context": patientContext(req.State.Patient),
	})
	if err != nil {
		s.caps.NoteError(ctx, statex.AgentIntake, sessionID, map[string]any{
			"stage": "model_invoke",
			"error": err.Error(),
		})
		return contractx.SpecialistResponse{Message: replyDegraded, SourceType: contractx.SourceTypeKB}, nil
	}

	if call, ok := lookupCall(msg); ok {
		return s.handleLookup(ctx, sessionID, call), nil
	}

	text := normalizeContent(msg)
	if text == "" {
		s.caps.NoteError(ctx, statex.AgentIntake, sessionID, map[string]any{
			"stage": "empty_reply",
		})
		return contractx.SpecialistResponse{Message: replyDegraded, SourceType: contractx.SourceTypeKB}, nil
	}

	handoff := statex.ContainsHandoffCue(text)
	if handoff {
		s.caps.NoteHandoff(ctx, statex.AgentIntake, sessionID, "medical_query")
	}

	return contractx.SpecialistResponse{
		Message:    text,
		Handoff:    handoff,
		SourceType: contractx.SourceTypeKB,
	}, nil
}

func (s *Specialist) handleLookup(ctx context.Context, sessionID string, args capability.Args) contractx.SpecialistResponse {
	res := s.caps.LookupRecord(ctx, statex.AgentIntake, sessionID, args.Name)

	switch res.Status {
	case capability.StatusResolved:
		p := res.Record
		return contractx.SpecialistResponse{
			Message: fmt.Sprintf(
				"I found your file, %s. You were discharged on %s for %s. How are you feeling today?",
				p.Name, p.DischargeDate, p.Diagnosis,
			),
			Patient:    p,
			SourceType: contractx.SourceTypeKB,
		}
	case capability.StatusAmbiguous:
		return contractx.SpecialistResponse{Message: replyAmbiguous, SourceType: contractx.SourceTypeKB}
	case capability.StatusNotFound:
		return contractx.SpecialistResponse{Message: replyNotFound, SourceType: contractx.SourceTypeKB}
	default:
		s.caps.NoteError(ctx, statex.AgentIntake, sessionID, map[string]any{
			"stage": "record_lookup",
			"name":  args.Name,
			"error": res.Err,
		})
		return contractx.SpecialistResponse{Message: replyLookupFail, SourceType: contractx.SourceTypeKB}
	}
}

// lookupCall extracts the first record-lookup tool call, if any.
func lookupCall(msg *schema.Message) (capability.Args, bool) {
	if msg == nil {
		return capability.Args{}, false
	}
	for _, call := range msg.ToolCalls {
		kind, ok := capability.ParseKind(call.Function.Name)
		if !ok || kind != capability.KindRecordLookup {
			continue
		}
		raw := map[string]any{}
		if trimmed := strings.TrimSpace(call.Function.Arguments); trimmed != "" {
			if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
				continue
			}
		}
		args := capability.ArgsFromMap(raw)
		if args.Name == "" {
			continue
		}
		return args, true
	}
	return capability.Args{}, false
}

// normalizeContent flattens model output into one string. Some providers
// return a list of content blocks instead of plain text; only the text
// blocks count.
func normalizeContent(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	if text := strings.TrimSpace(msg.Content); text != "" {
		return text
	}
	var parts []string
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText && strings.TrimSpace(part.Text) != "" {
			parts = append(parts, strings.TrimSpace(part.Text))
		}
	}
	return strings.Join(parts, " ")
}

func patientContext(p *statex.PatientRecord) string {
	if p == nil {
		return notIdentified
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return notIdentified
	}
	return string(raw)
}

func transcript(messages []statex.Message) []map[string]string {
	out := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}
	return out
}

func lookupTools() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: string(capability.KindRecordLookup),
			Desc: "Search for a patient record by name. Returns the record, or a not-found / multiple-matches status.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name": {Type: schema.String, Desc: "Patient name as given by the user", Required: true},
			}),
		},
	}
}

func compileIntakeGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add intake prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add intake model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add intake edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add intake edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add intake edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("intake.turn_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile intake graph: %w", err)
	}
	return runner, nil
}
