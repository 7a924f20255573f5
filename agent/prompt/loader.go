package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/intake.txt
	intakeRaw string

	//go:embed template/clinical.txt
	clinicalRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Intake   string
	Clinical string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe to
// call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Intake:   strings.TrimSpace(intakeRaw),
		Clinical: strings.TrimSpace(clinicalRaw),
	}
}
