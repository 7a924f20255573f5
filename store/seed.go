package store

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var (
	seedFirstNames = []string{
		"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael",
		"Linda", "William", "Elizabeth", "David", "Barbara", "Richard", "Susan",
		"Joseph", "Jessica", "Thomas", "Sarah", "Charles", "Karen", "Christopher",
		"Nancy", "Daniel", "Lisa", "Matthew", "Betty", "Anthony", "Margaret",
		"Mark", "Sandra",
	}
	seedLastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
		"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
		"Lee", "Perez", "Thompson", "White", "Harris",
	}
	seedDiagnoses = []string{
		"Chronic Kidney Disease Stage 2",
		"Chronic Kidney Disease Stage 3a",
		"Chronic Kidney Disease Stage 3b",
		"Chronic Kidney Disease Stage 4",
		"End Stage Renal Disease (on Dialysis)",
	}
	seedMedications = []string{
		"Lisinopril 10mg daily", "Furosemide 20mg twice daily", "Amlodipine 5mg daily",
		"Metoprolol 25mg daily", "Atorvastatin 40mg daily", "Calcium Acetate 667mg with meals",
		"Sevelamer 800mg with meals", "Calcitriol 0.25mcg daily", "Allopurinol 100mg daily",
	}
)

// SeedPatients populates the patients table with a randomized renal cohort
// plus two fixed demo patients. It is a no-op when patients already exist.
func SeedPatients(ctx context.Context, db *bun.DB) (int, error) {
	count, err := db.NewSelect().Model((*Patient)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	today := time.Now().UTC().Truncate(24 * time.Hour)

	patients := make([]Patient, 0, 32)
	for i := 0; i < 30; i++ {
		diagnosis := seedDiagnoses[rng.Intn(len(seedDiagnoses))]
		patients = append(patients, Patient{
			Name:                  seedFirstNames[rng.Intn(len(seedFirstNames))] + " " + seedLastNames[rng.Intn(len(seedLastNames))],
			DischargeDate:         today.AddDate(0, 0, -(1 + rng.Intn(60))),
			PrimaryDiagnosis:      diagnosis,
			Medications:           sampleMedications(rng, 2+rng.Intn(4)),
			DietaryRestrictions:   dietFor(diagnosis),
			FollowUp:              "Nephrology clinic in 2 weeks",
			WarningSigns:          warningsFor(diagnosis),
			DischargeInstructions: "Monitor blood pressure daily, weigh yourself daily. Call if weight increases > 2kg in 2 days.",
		})
	}

	patients = append(patients,
		Patient{
			Name:                  "John Smith",
			DischargeDate:         time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			PrimaryDiagnosis:      "Chronic Kidney Disease Stage 3",
			Medications:           []string{"Lisinopril 10mg daily", "Furosemide 20mg twice daily"},
			DietaryRestrictions:   "Low sodium (2g/day), fluid restriction (1.5L/day)",
			FollowUp:              "Nephrology clinic in 2 weeks",
			WarningSigns:          "Swelling, shortness of breath, decreased urine output",
			DischargeInstructions: "Monitor blood pressure daily, weigh yourself daily",
		},
		Patient{
			Name:                  "Abhishek B Shetty",
			DischargeDate:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			PrimaryDiagnosis:      "Chronic Kidney Disease Stage 2",
			Medications:           []string{"Metformin 500mg", "Atorvastatin 20mg"},
			DietaryRestrictions:   "Diabetic renal diet, limit sugar",
			FollowUp:              "Endocrinology in 1 month",
			WarningSigns:          "Dizziness, high blood sugar, swelling",
			DischargeInstructions: "Check blood sugar daily, maintain diet.",
		},
	)

	if _, err := db.NewInsert().Model(&patients).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert seed patients: %w", err)
	}
	return len(patients), nil
}

func sampleMedications(rng *rand.Rand, n int) []string {
	perm := rng.Perm(len(seedMedications))
	if n > len(perm) {
		n = len(perm)
	}
	meds := make([]string, 0, n)
	for _, idx := range perm[:n] {
		meds = append(meds, seedMedications[idx])
	}
	return meds
}

func dietFor(diagnosis string) string {
	switch {
	case strings.Contains(diagnosis, "Dialysis"):
		return "Fluid restriction 1L/day, Low Potassium, Low Phosphorus, High Protein"
	case strings.Contains(diagnosis, "Stage 4"):
		return "Low Sodium, Low Protein, Limit Potassium"
	default:
		return "Low Sodium (2g/day), DASH diet"
	}
}

func warningsFor(diagnosis string) string {
	switch {
	case strings.Contains(diagnosis, "Dialysis"):
		return "Missed dialysis session, shortness of breath, bleeding from access site"
	case strings.Contains(diagnosis, "Stage 4"):
		return "Swelling in legs, difficulty breathing, nausea"
	default:
		return "Swelling, blood in urine, severe fatigue"
	}
}
