package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edwinlov3tt/approval-dashboard/internal/config"
	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
	"github.com/edwinlov3tt/approval-dashboard/internal/repo"
)

// ResolveAdvertiser ensures the configured advertiser exists in the database,
// seeding a row from approval.yml on first use.
func ResolveAdvertiser(ctx context.Context, cfg *config.Config, r repo.Repo) (domain.Advertiser, error) {
	if cfg == nil || cfg.Advertiser.ID == "" {
		return domain.Advertiser{}, fmt.Errorf("advertiser not configured; set advertiser.id in %s", config.FileName)
	}
	a, err := r.GetAdvertiser(ctx, cfg.Advertiser.ID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Advertiser{}, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	a = domain.Advertiser{
		ID:          cfg.Advertiser.ID,
		CompanyName: cfg.Advertiser.CompanyName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if a.CompanyName == "" {
		a.CompanyName = a.ID
	}
	if err := r.InsertAdvertiser(ctx, a); err != nil {
		return domain.Advertiser{}, fmt.Errorf("seed advertiser: %w", err)
	}
	return a, nil
}
