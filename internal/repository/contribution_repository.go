package repository

import (
	"context"

	"github.com/unclebandit/darb-backend/internal/model"
)

type ContributionRepositoryInterface interface {
	Create(ctx context.Context, c *model.Contribution) error
	GetByID(ctx context.Context, id string) (*model.Contribution, error)
	Update(ctx context.Context, c *model.Contribution) error
	ListByInvestor(ctx context.Context, investorID string) ([]model.Contribution, error)
}

type ContributionRepository struct {
	Store Adapter
}

func NewContributionRepository(store Adapter) *ContributionRepository {
	return &ContributionRepository{Store: store}
}

func (r *ContributionRepository) Create(ctx context.Context, c *model.Contribution) error {
	return createRecord(ctx, r.Store, model.CollectionContributions, c)
}

func (r *ContributionRepository) GetByID(ctx context.Context, id string) (*model.Contribution, error) {
	return getRecord[model.Contribution](ctx, r.Store, model.CollectionContributions, id)
}

func (r *ContributionRepository) Update(ctx context.Context, c *model.Contribution) error {
	return updateRecord(ctx, r.Store, model.CollectionContributions, c.ID, c)
}

func (r *ContributionRepository) ListByInvestor(ctx context.Context, investorID string) ([]model.Contribution, error) {
	return listRecords[model.Contribution](ctx, r.Store, model.CollectionContributions, Where("investorId", investorID))
}

var _ ContributionRepositoryInterface = (*ContributionRepository)(nil)
