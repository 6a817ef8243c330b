package firstaid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrGuideNotFound = errors.New("first aid guide not found")

// Guide maps to the first_aid_guides table.
type Guide struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Category      string    `db:"category" json:"category"`
	Description   string    `db:"description" json:"description"`
	Content       string    `db:"content" json:"content"`
	WarningSigns  string    `db:"warning_signs" json:"warning_signs"`
	ImageFileName *string   `db:"image_file_name" json:"image_file_name,omitempty"`
	DisplayOrder  int       `db:"display_order" json:"display_order"`
	IsEmergency   bool      `db:"is_emergency" json:"is_emergency"`
}

func (g *Guide) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(g.Category) == "" {
		return fmt.Errorf("category is required")
	}
	return nil
}

// Steps returns the numbered instructions of the guide, one per line, with
// the "1. " prefixes removed.
func (g *Guide) Steps() []string {
	return splitLines(g.Content, func(line string) string {
		if i := strings.Index(line, ". "); i > 0 && isDigits(line[:i]) {
			return strings.TrimSpace(line[i+2:])
		}
		return line
	})
}

// Warnings returns the warning signs, one per line, without bullets.
func (g *Guide) Warnings() []string {
	return splitLines(g.WarningSigns, func(line string) string {
		return strings.TrimSpace(strings.TrimLeft(line, "•-* "))
	})
}

func splitLines(block string, clean func(string) string) []string {
	out := []string{}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line = clean(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Filter narrows a guide listing. Zero fields do not filter.
type Filter struct {
	Category      string
	Query         string
	EmergencyOnly bool
}

func (f Filter) Match(g *Guide) bool {
	if f.Category != "" && !strings.EqualFold(g.Category, f.Category) {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(g.Title), strings.ToLower(f.Query)) {
		return false
	}
	if f.EmergencyOnly && !g.IsEmergency {
		return false
	}
	return true
}
