// Package plans holds the default plan catalog and seeds it into storage.
package plans

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type entry struct {
	Type        string   `yaml:"type"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Duration    int      `yaml:"duration"`
	PriceCents  int64    `yaml:"price_cents"`
	Currency    string   `yaml:"currency"`
	SortOrder   int      `yaml:"sort_order"`
	Features    []string `yaml:"features"`
	Inactive    bool     `yaml:"inactive"`
}

type catalogFile struct {
	Plans []entry `yaml:"plans"`
}

// Parse decodes and validates a YAML plan catalog.
func Parse(data []byte) ([]model.Plan, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("plan catalog: %w", err)
	}
	seen := make(map[model.PlanType]bool, len(f.Plans))
	out := make([]model.Plan, 0, len(f.Plans))
	for i, e := range f.Plans {
		p := model.Plan{
			Type:        model.PlanType(e.Type),
			Name:        e.Name,
			Description: e.Description,
			Duration:    e.Duration,
			PriceCents:  e.PriceCents,
			Currency:    e.Currency,
			Features:    e.Features,
			IsActive:    !e.Inactive,
			SortOrder:   e.SortOrder,
		}
		if err := validation.Plan(&p); err != nil {
			return nil, fmt.Errorf("plan catalog entry %d (%s): %w", i, e.Type, err)
		}
		if seen[p.Type] {
			return nil, fmt.Errorf("plan catalog: duplicate type %q", p.Type)
		}
		seen[p.Type] = true
		out = append(out, p)
	}
	return out, nil
}

// Default returns the embedded catalog.
func Default() []model.Plan {
	plans, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return plans
}

type Seeder interface {
	Seed(ctx context.Context, plans []model.Plan) (int, error)
}

func SeedDefaults(ctx context.Context, repo Seeder, logger *slog.Logger) error {
	added, err := repo.Seed(ctx, Default())
	if err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	if added > 0 {
		logger.Info("default plans seeded", "added", added)
	}
	return nil
}
