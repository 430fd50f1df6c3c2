package repository

import (
	"context"
	"testing"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/testutil"
)

func TestModelRepository_GetByProviderAndName(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewModelRepository(db)
	ctx := context.Background()

	seeded := testutil.SeedModel(t, db, "openai", "gpt-4o-mini", 0.001, 0.002)
	disabled := &model.Model{Provider: "openai", Name: "old", Status: model.ModelStatusDisabled}
	if err := repo.Create(ctx, disabled); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByProviderAndName(ctx, "openai", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("GetByProviderAndName() error = %v", err)
	}
	if got.ID != seeded.ID || got.PubID == "" {
		t.Errorf("got %+v", got)
	}

	if _, err := repo.GetByProviderAndName(ctx, "openai", "old"); !errs.IsNotFound(err) {
		t.Errorf("disabled model error = %v, want not found", err)
	}
	if _, err := repo.GetByProviderAndName(ctx, "claude", "gpt-4o-mini"); !errs.IsNotFound(err) {
		t.Errorf("wrong provider error = %v, want not found", err)
	}

	all, err := repo.List(ctx, "openai")
	if err != nil || len(all) != 2 {
		t.Errorf("List() = %d, %v", len(all), err)
	}
}
