package plans

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

func TestDefaultCatalog(t *testing.T) {
	plans := Default()
	if len(plans) != 4 {
		t.Fatalf("expected 4 plans, got %d", len(plans))
	}
	byType := map[model.PlanType]model.Plan{}
	for _, p := range plans {
		byType[p.Type] = p
	}
	if p := byType[model.PlanFree]; p.Duration != 0 || p.Paid() {
		t.Fatalf("free plan should be unpaid and unscheduled: %+v", p)
	}
	if byType[model.Plan30Min].Duration != 30 || byType[model.Plan60Min].Duration != 60 {
		t.Fatal("timed plans carry their duration")
	}
	if byType[model.PlanCustom].Duration != 90 {
		t.Fatalf("custom plan defaults to 90 minutes, got %d", byType[model.PlanCustom].Duration)
	}
	for _, p := range plans {
		if !p.IsActive || p.Currency != "eur" || len(p.Features) == 0 {
			t.Fatalf("unexpected plan %+v", p)
		}
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"unknown type": "plans:\n  - type: weekly\n    name: X\n",
		"duplicate":    "plans:\n  - type: 30min\n    name: A\n    duration: 30\n  - type: 30min\n    name: B\n    duration: 30\n",
		"not yaml":     "plans: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

type fakeSeeder struct {
	got []model.Plan
	err error
}

func (f *fakeSeeder) Seed(_ context.Context, plans []model.Plan) (int, error) {
	f.got = plans
	return len(plans), f.err
}

func TestSeedDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &fakeSeeder{}
	if err := SeedDefaults(context.Background(), s, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(s.got) != 4 {
		t.Fatalf("expected the full catalog, got %d", len(s.got))
	}
	s.err = errors.New("db down")
	if err := SeedDefaults(context.Background(), s, logger); err == nil {
		t.Fatal("expected seed error")
	}
}
