package repository

import (
	"context"

	"github.com/unclebandit/darb-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	Update(ctx context.Context, c *model.Campaign) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]model.Campaign, error)
}

// CampaignRepository stores campaigns in one collection. The same type
// serves published campaigns and drafts.
type CampaignRepository struct {
	Store      Adapter
	Collection string
}

func NewCampaignRepository(store Adapter, collection string) *CampaignRepository {
	return &CampaignRepository{Store: store, Collection: collection}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	return createRecord(ctx, r.Store, r.Collection, c)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	return getRecord[model.Campaign](ctx, r.Store, r.Collection, id)
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	return updateRecord(ctx, r.Store, r.Collection, c.ID, c)
}

func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	_, err := r.Store.Delete(ctx, r.Collection, id)
	return err
}

func (r *CampaignRepository) List(ctx context.Context, filter Filter) ([]model.Campaign, error) {
	return listRecords[model.Campaign](ctx, r.Store, r.Collection, filter)
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
