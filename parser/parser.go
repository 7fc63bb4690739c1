// Package parser turns roster and stats pages into links and player metrics.
package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/qb-stats-scraper/models"
)

// ValidatePlayer ensures the scraper captured the required fields.
func ValidatePlayer(p *models.Player) error {
	if p == nil {
		return fmt.Errorf("player is nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("player missing name for %s", p.URL)
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("player missing url for %s", p.Name)
	}
	if !p.HasStats {
		return nil
	}
	for column, value := range map[string]string{
		"ATT":  p.Attempts,
		"COMP": p.Completions,
		"YDS":  p.Yards,
		"TD":   p.Touchdowns,
		"INT":  p.Interceptions,
		"PR":   p.PasserRating,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("player %s missing %s", p.Name, column)
		}
	}
	return nil
}
