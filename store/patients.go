package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

var ErrPatientNotFound = errors.New("patient not found")

// PatientStore serves fuzzy name lookups and verbatim fetches over the
// patients table.
type PatientStore struct {
	db *bun.DB
}

func NewPatientStore(db *bun.DB) *PatientStore {
	return &PatientStore{db: db}
}

// Search matches case-insensitively on the cleaned full name first. If that
// yields nothing it retries per individual name token (length > 2) and stops
// at the first token with any matches.
func (s *PatientStore) Search(ctx context.Context, nameFragment string) ([]statex.PatientRecord, error) {
	clean := CleanName(nameFragment)
	if clean == "" {
		return nil, nil
	}

	patients, err := s.searchFragment(ctx, clean)
	if err != nil {
		return nil, err
	}

	if len(patients) == 0 {
		for _, token := range NameTokens(clean) {
			patients, err = s.searchFragment(ctx, token)
			if err != nil {
				return nil, err
			}
			if len(patients) > 0 {
				break
			}
		}
	}

	records := make([]statex.PatientRecord, 0, len(patients))
	for _, p := range patients {
		records = append(records, toRecord(p))
	}
	return records, nil
}

func (s *PatientStore) searchFragment(ctx context.Context, fragment string) ([]Patient, error) {
	var patients []Patient
	err := s.db.NewSelect().
		Model(&patients).
		Where("name ILIKE ?", "%"+fragment+"%").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search patients by %q: %w", fragment, err)
	}
	return patients, nil
}

// Patient fetches one record by id, in the same shape a lookup produces.
func (s *PatientStore) Patient(ctx context.Context, id int64) (*statex.PatientRecord, error) {
	var p Patient
	err := s.db.NewSelect().Model(&p).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch patient %d: %w", id, err)
	}
	record := toRecord(p)
	return &record, nil
}

func toRecord(p Patient) statex.PatientRecord {
	return statex.PatientRecord{
		ID:            p.ID,
		Name:          p.Name,
		DischargeDate: p.DischargeDate.Format(dateLayout),
		Diagnosis:     p.PrimaryDiagnosis,
		Medications:   append([]string(nil), p.Medications...),
		Diet:          p.DietaryRestrictions,
		WarningSigns:  p.WarningSigns,
		Instructions:  p.DischargeInstructions,
	}
}

// CleanName strips periods and collapses whitespace before matching.
func CleanName(name string) string {
	clean := strings.ReplaceAll(strings.TrimSpace(name), ".", "")
	return strings.Join(strings.Fields(clean), " ")
}

// NameTokens returns the tokens worth retrying individually: anything longer
// than two runes, so initials and particles are skipped.
func NameTokens(clean string) []string {
	var tokens []string
	for _, token := range strings.Fields(clean) {
		if len([]rune(token)) > 2 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
