// Package agents assembles the specialist implementations behind the
// contract.Registry interface.
package agents

import (
	"context"
	"fmt"

	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/agents/clinical"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/agents/intake"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/capability"
	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/llm"
	"github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/prompt"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

type registry struct {
	intake   contractx.Specialist
	clinical contractx.Specialist
}

func (r *registry) Intake() contractx.Specialist   { return r.intake }
func (r *registry) Clinical() contractx.Specialist { return r.clinical }

// NewRegistry builds both specialists with their own model settings and a
// shared capability invoker.
func NewRegistry(ctx context.Context, cfg llm.Config, prompts prompt.PromptSet, caps *capability.Invoker) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	intakeCfg := cfg.OpenRouterFor(statex.AgentIntake)
	intakeModel, err := intakeCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build intake model: %w", err)
	}
	intakeAgent, err := intake.New(ctx, intakeModel, prompts.Intake, caps)
	if err != nil {
		return nil, fmt.Errorf("build intake specialist: %w", err)
	}

	clinicalCfg := cfg.OpenRouterFor(statex.AgentClinical)
	clinicalModel, err := clinicalCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("build clinical model: %w", err)
	}
	clinicalAgent, err := clinical.New(ctx, clinicalModel, prompts.Clinical, caps)
	if err != nil {
		return nil, fmt.Errorf("build clinical specialist: %w", err)
	}

	return &registry{intake: intakeAgent, clinical: clinicalAgent}, nil
}
