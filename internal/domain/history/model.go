package history

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conectaribas/conectaribas/internal/domain/severity"
)

var (
	ErrRecordNotFound = errors.New("symptom record not found")
	ErrInvalidRecord  = errors.New("invalid symptom record")
)

// SymptomRecord maps to the symptom_records table. Records are never
// updated once written.
type SymptomRecord struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	Timestamp       time.Time         `db:"timestamp" json:"timestamp"`
	PatientName     *string           `db:"patient_name" json:"patient_name,omitempty"`
	Symptoms        string            `db:"symptoms" json:"symptoms"`
	Diagnosis       severity.Severity `db:"diagnosis" json:"diagnosis"`
	Recommendations string            `db:"recommendations" json:"recommendations"`
}

func (r *SymptomRecord) Validate() error {
	if strings.TrimSpace(r.Symptoms) == "" {
		return fmt.Errorf("%w: symptoms is required", ErrInvalidRecord)
	}
	if !r.Diagnosis.Valid() {
		return fmt.Errorf("%w: diagnosis: %w", ErrInvalidRecord, severity.ErrUnknown)
	}
	return nil
}

// RecommendationLines splits the stored recommendation block into lines,
// dropping blank ones.
func (r *SymptomRecord) RecommendationLines() []string {
	var out []string
	for _, line := range strings.Split(r.Recommendations, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Filter narrows a history listing. Zero fields do not filter.
type Filter struct {
	From      *time.Time
	To        *time.Time
	Patient   string
	Diagnosis severity.Severity
}

// Match applies f to a single record. Repositories that cannot push the
// filter into a query use it directly.
func (f Filter) Match(r *SymptomRecord) bool {
	if f.From != nil && r.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Timestamp.After(*f.To) {
		return false
	}
	if f.Patient != "" {
		if r.PatientName == nil || !strings.Contains(strings.ToLower(*r.PatientName), strings.ToLower(f.Patient)) {
			return false
		}
	}
	if f.Diagnosis != 0 && r.Diagnosis != f.Diagnosis {
		return false
	}
	return true
}

// Export is the portable form of the whole history.
type Export struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Records    []*SymptomRecord `json:"records"`
}

const ExportVersion = 1
