// Package clinical implements the specialist that answers medical questions
// from retrieved reference material once a session has been handed off.
package clinical

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

const replyNoMaterial = "I wasn't able to retrieve the reference material right now. Please try again shortly, or contact your care team if this is urgent."

// Specialist is the clinical agent. It never hands a session back.
type Specialist struct {
	runner compose.Runnable[map[string]any, *schema.Message]
	caps   *capability.Invoker
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, caps *capability.Invoker) (*Specialist, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: clinical prompt is empty", contractx.ErrPromptMissing)
	}
	if caps == nil {
		return nil, errors.New("capability invoker is required")
	}

	runner, err := compileClinicalGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile clinical graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Specialist{runner: runner, caps: caps}, nil
}

func (s *Specialist) Respond(ctx context.Context, req contractx.SpecialistRequest) (contractx.SpecialistResponse, error) {
	if req.State == nil {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: working state is nil", contractx.ErrValidation)
	}
	sessionID := req.State.SessionID
	question := strings.TrimSpace(req.UserMessage)
	qualifiers := patientQualifiers(req.State.Patient)

	knowledge := s.caps.QueryKnowledge(ctx, statex.AgentClinical, sessionID, question, qualifiers)

	var hits []contractx.SearchHit
	sourceType := contractx.SourceTypeKB
	if WantsRecentEvidence(question) {
		search := s.caps.SearchExternal(ctx, statex.AgentClinical, sessionID, question)
		if search.Status == capability.StatusResolved {
			hits = search.Hits
			sourceType = contractx.SourceTypeWeb
		}
	}

	if len(knowledge.Passages) == 0 && len(hits) == 0 {
		return contractx.SpecialistResponse{
			Message:    replyNoMaterial,
			SourceType: contractx.SourceTypeKB,
		}, nil
	}

	citations := collectCitations(knowledge.Passages, hits)

	input, err := json.Marshal(map[string]any{
		"question":       question,
		"passages":       knowledge.Passages,
		"search_results": hits,
	})
	if err != nil {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: marshal clinical payload: %v", contractx.ErrValidation, err)
	}

	msg, invokeErr := s.runner.Invoke(ctx, map[string]any{
		"input":           string(input),
		"patient_context": qualifiersOrDefault(qualifiers),
	})
	text := normalizeContent(msg)
	if invokeErr != nil || text == "" {
		detail := map[string]any{"stage": "model_invoke"}
		if invokeErr != nil {
			detail["error"] = invokeErr.Error()
		}
		s.caps.NoteError(ctx, statex.AgentClinical, sessionID, detail)
		return contractx.SpecialistResponse{
			Message:    fallbackAnswer(knowledge.Passages, hits),
			Citations:  citations,
			SourceType: sourceType,
		}, nil
	}

	return contractx.SpecialistResponse{
		Message:    text,
		Citations:  citations,
		SourceType: sourceType,
	}, nil
}

var recencyTokens = map[string]struct{}{
	"latest": {}, "newest": {}, "new": {}, "recent": {}, "recently": {},
	"news": {}, "update": {}, "updates": {}, "today": {},
}

// WantsRecentEvidence reports whether a question asks for time-sensitive
// material (explicit recency words or a 20xx year).
func WantsRecentEvidence(question string) bool {
	for _, field := range strings.Fields(strings.ToLower(question)) {
		token := strings.Trim(field, ".,;:!?()\"'")
		if _, ok := recencyTokens[token]; ok {
			return true
		}
		if len(token) == 4 && strings.HasPrefix(token, "20") {
			return true
		}
	}
	return false
}

// patientQualifiers condenses the resolved record into retrieval context.
func patientQualifiers(p *statex.PatientRecord) string {
	if p == nil {
		return ""
	}
	parts := []string{"Diagnosis: " + p.Diagnosis}
	if len(p.Medications) > 0 {
		parts = append(parts, "Medications: "+strings.Join(p.Medications, ", "))
	}
	if p.Diet != "" {
		parts = append(parts, "Diet: "+p.Diet)
	}
	if p.WarningSigns != "" {
		parts = append(parts, "Warning signs: "+p.WarningSigns)
	}
	return strings.Join(parts, ". ")
}

func qualifiersOrDefault(qualifiers string) string {
	if qualifiers == "" {
		return "No record on file"
	}
	return qualifiers
}

func collectCitations(passages []contractx.Passage, hits []contractx.SearchHit) []string {
	seen := make(map[string]struct{})
	var citations []string
	add := func(c string) {
		if c == "" {
			return
		}
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		citations = append(citations, c)
	}
	for _, p := range passages {
		add(p.Source)
	}
	for _, h := range hits {
		add(h.URL)
	}
	return citations
}

// fallbackAnswer quotes the best retrieved material directly when the model
// is unavailable, so the patient still gets a grounded response.
func fallbackAnswer(passages []contractx.Passage, hits []contractx.SearchHit) string {
	if len(passages) > 0 {
		return "I couldn't compose a full answer right now, but the reference material says: " + passages[0].Content
	}
	if len(hits) > 0 {
		return "I couldn't compose a full answer right now, but a recent source reports: " + hits[0].Snippet
	}
	return replyNoMaterial
}

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

func compileClinicalGraph(
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
		return nil, fmt.Errorf("add clinical prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add clinical model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add clinical edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add clinical edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add clinical edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("clinical.turn_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile clinical graph: %w", err)
	}
	return runner, nil
}
