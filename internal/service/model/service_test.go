package model

import (
	"context"
	"testing"

	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/service/provider"
	"github.com/ashwinyue/next-chat/internal/testutil"
)

func TestService_EnsureDefaults(t *testing.T) {
	db := testutil.NewTestDB(t)
	seeded := testutil.SeedModel(t, db, "openai", "gpt-4o-mini", 0.5, 0.7)
	svc := NewService(repository.NewModelRepository(db), nil)
	ctx := context.Background()

	created, err := svc.EnsureDefaults(ctx, 0.001, 0.002)
	if err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}
	if want := len(provider.Variants()) - 1; created != want {
		t.Errorf("created = %d, want %d", created, want)
	}

	// 已有价目不被覆盖
	got, err := repository.NewModelRepository(db).GetByProviderAndName(ctx, "openai", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != seeded.ID || got.InputTokenCost != 0.5 {
		t.Errorf("existing rate card changed: %+v", got)
	}

	again, _ := svc.EnsureDefaults(ctx, 0.001, 0.002)
	if again != 0 {
		t.Errorf("second EnsureDefaults() created %d", again)
	}
}

func TestService_ListModels(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.SeedModel(t, db, "openai", "gpt-4o-mini", 0.1, 0.2)
	testutil.SeedModel(t, db, "deepseek", "deepseek-chat", 0.1, 0.2)
	disabled := testutil.SeedModel(t, db, "qwen", "qwen-max", 0.1, 0.2)
	db.Model(disabled).Update("status", model.ModelStatusDisabled)
	testutil.SeedModel(t, db, "openai", "retired-model", 0.1, 0.2)
	svc := NewService(repository.NewModelRepository(db), nil)

	all, err := svc.ListModels(context.Background(), "")
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("models = %d, want 2", len(all))
	}

	openai, _ := svc.ListModels(context.Background(), "openai")
	if len(openai) != 1 || openai[0].Name != "gpt-4o-mini" {
		t.Errorf("openai models = %+v", openai)
	}
}

func TestService_ListModelProviders(t *testing.T) {
	svc := NewService(nil, nil)
	providers := svc.ListModelProviders(context.Background())

	total := 0
	for _, p := range providers {
		if p.DisplayName == "" {
			t.Errorf("provider %s has no display name", p.Name)
		}
		total += len(p.Models)
	}
	if total != len(provider.Variants()) {
		t.Errorf("models across providers = %d, want %d", total, len(provider.Variants()))
	}
}
