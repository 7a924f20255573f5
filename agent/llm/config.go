package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
	openrouterx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/pkg/openrouter"
)

// Config selects the chat model per specialist, with a shared default.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`

	IntakeModel         string  `envconfig:"INTAKE_MODEL" split_words:"true"`
	ClinicalModel       string  `envconfig:"CLINICAL_MODEL" split_words:"true"`
	IntakeTemperature   float32 `envconfig:"INTAKE_TEMPERATURE" split_words:"true" default:"-1"`
	ClinicalTemperature float32 `envconfig:"CLINICAL_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings for one specialist.
func (c Config) OpenRouterFor(agent statex.AgentName) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agent {
	case statex.AgentIntake:
		if v := strings.TrimSpace(c.IntakeModel); v != "" {
			modelName = v
		}
		if c.IntakeTemperature >= 0 {
			temp = c.IntakeTemperature
		}
	case statex.AgentClinical:
		if v := strings.TrimSpace(c.ClinicalModel); v != "" {
			modelName = v
		}
		if c.ClinicalTemperature >= 0 {
			temp = c.ClinicalTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
