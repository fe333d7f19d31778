// internal/service/campaign_service.go
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/darb-backend/internal/cache"
	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/media"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/queue"
	"github.com/unclebandit/darb-backend/internal/quota"
	"github.com/unclebandit/darb-backend/internal/repository"
)

// AssetOptimizer processes every pending asset of a record, all or nothing.
type AssetOptimizer interface {
	ProcessAll(ctx context.Context, assets []*model.ImageAsset) ([]media.Upload, error)
}

// QuotaManager checks and relieves local storage pressure.
type QuotaManager interface {
	Relieve(ctx context.Context) (quota.Report, error)
	EnsureCapacity(ctx context.Context, incoming int64) error
}

// CampaignService coordinates optimization, persistence, caching and quota
// checks for every user-facing campaign operation.
type CampaignService struct {
	Campaigns     repository.CampaignRepositoryInterface
	Drafts        repository.CampaignRepositoryInterface
	Contributions repository.ContributionRepositoryInterface
	Lists         repository.UserListRepositoryInterface

	Cache       *cache.Cache
	Optimizer   AssetOptimizer
	Quota       QuotaManager
	Queue       queue.Queue
	UploadTopic string
	Locks       *KeyedMutex
	Logger      zerolog.Logger
}

// NewCampaignService wires the repositories of every collection over store.
// optimizer, quotas and q may be nil.
func NewCampaignService(store repository.Adapter, c *cache.Cache, optimizer AssetOptimizer, quotas QuotaManager, q queue.Queue, logger zerolog.Logger) *CampaignService {
	if c == nil {
		c = cache.New()
	}
	return &CampaignService{
		Campaigns:     repository.NewCampaignRepository(store, model.CollectionCampaigns),
		Drafts:        repository.NewCampaignRepository(store, model.CollectionDrafts),
		Contributions: repository.NewContributionRepository(store),
		Lists:         repository.NewUserListRepository(store),
		Cache:         c,
		Optimizer:     optimizer,
		Quota:         quotas,
		Queue:         q,
		UploadTopic:   queue.TopicAssetUploads,
		Locks:         NewKeyedMutex(),
		Logger:        logger.With().Str("component", "campaigns").Logger(),
	}
}

// CreateCampaign stores a new active campaign owned by creatorID.
func (s *CampaignService) CreateCampaign(ctx context.Context, input model.Campaign, creatorID string) (*model.Campaign, error) {
	if creatorID == "" {
		return nil, appErrors.NewPermission("create campaign")
	}
	c := input.Clone()
	c.ID = ""
	c.Status = model.StatusActive
	c.CurrentAmount = 0
	c.Creator.ID = creatorID
	c.CreatedAt = time.Time{}

	if err := validateCampaign(&c, false); err != nil {
		return nil, err
	}
	uploads, err := s.processAssets(ctx, &c)
	if err != nil {
		return nil, err
	}
	if err := s.Campaigns.Create(ctx, &c); err != nil {
		return nil, err
	}

	s.Logger.Info().Str("campaign", c.ID).Str("origin", string(c.Origin)).Msg("✅ campaign created")
	s.afterMutation(ctx, model.CollectionCampaigns)
	s.remember(&c)
	s.enqueueUploads(model.CollectionCampaigns, c.ID, uploads)
	return &c, nil
}

// UpdateCampaign merges the top-level fields of patch (a JSON object) into
// the campaign. When the campaign cannot be read because the remote store is
// down, the patch is merged onto the last copy this process saw and the
// result is written to the local store.
func (s *CampaignService) UpdateCampaign(ctx context.Context, id string, patch []byte) (*model.Campaign, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()

	current, err := s.Campaigns.GetByID(ctx, id)
	if appErrors.IsBackendUnavailable(err) {
		if last, ok := cache.LastKnown[model.Campaign](s.Cache, campaignKey(id)); ok {
			s.Logger.Warn().Err(err).Str("campaign", id).Msg("⚠️ campaign unreadable, merging onto last known copy")
			current, err = &last, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if current.Status == model.StatusClosed {
		return nil, appErrors.NewValidation("status", "closed campaigns cannot be edited")
	}
	c, err := mergeCampaign(current, patch)
	if err != nil {
		return nil, err
	}
	if err := validateCampaign(c, false); err != nil {
		return nil, err
	}
	uploads, err := s.processAssets(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.Campaigns.Update(ctx, c); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, model.CollectionCampaigns)
	s.remember(c)
	s.enqueueUploads(model.CollectionCampaigns, c.ID, uploads)
	return c, nil
}

func (s *CampaignService) DeleteCampaign(ctx context.Context, id string) error {
	unlock := s.Locks.Lock(id)
	defer unlock()

	if err := s.Campaigns.Delete(ctx, id); err != nil {
		return err
	}
	s.Logger.Info().Str("campaign", id).Msg("🗑️ campaign deleted")
	s.Cache.Forget(campaignKey(id))
	s.afterMutation(ctx, model.CollectionCampaigns)
	return nil
}

func campaignKey(id string) cache.Key {
	return cache.NewKey("getCampaign", []string{model.CollectionCampaigns}, id)
}

// remember keeps the newest written state of c for UpdateCampaign to fall
// back on.
func (s *CampaignService) remember(c *model.Campaign) {
	cache.Remember(s.Cache, campaignKey(c.ID), *c)
}

func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := cache.GetOrFetch(ctx, s.Cache, campaignKey(id), cache.ListWindow, func(ctx context.Context) (model.Campaign, error) {
		c, err := s.Campaigns.GetByID(ctx, id)
		if err != nil {
			return model.Campaign{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCampaigns returns every campaign matching filter, newest first.
func (s *CampaignService) ListCampaigns(ctx context.Context, filter repository.Filter) ([]model.Campaign, error) {
	key := cache.NewKey("listCampaigns", []string{model.CollectionCampaigns}, filter.Signature())
	return cache.GetOrFetch(ctx, s.Cache, key, cache.ListWindow, func(ctx context.Context) ([]model.Campaign, error) {
		return s.Campaigns.List(ctx, filter)
	})
}

// CloseCampaign moves an active campaign to closed. Closed is final.
func (s *CampaignService) CloseCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()

	c, err := s.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.StatusClosed {
		return c, nil
	}
	if !c.Status.CanTransition(model.StatusClosed) {
		return nil, appErrors.NewValidation("status", "only active campaigns can be closed")
	}
	c.Status = model.StatusClosed
	if err := s.Campaigns.Update(ctx, c); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, model.CollectionCampaigns)
	s.remember(c)
	return c, nil
}

// AdjustAmount is the admin correction of a campaign's raised total, the
// only path that may lower it.
func (s *CampaignService) AdjustAmount(ctx context.Context, id string, amount float64) (*model.Campaign, error) {
	if amount < 0 {
		return nil, appErrors.NewValidation("currentAmount", "must not be negative")
	}
	unlock := s.Locks.Lock(id)
	defer unlock()

	c, err := s.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Logger.Warn().
		Str("campaign", id).
		Float64("from", c.CurrentAmount).
		Float64("to", amount).
		Msg("campaign total adjusted")
	c.CurrentAmount = amount
	if err := s.Campaigns.Update(ctx, c); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, model.CollectionCampaigns)
	s.remember(c)
	return c, nil
}

// afterMutation drops cached reads of the touched collections and relieves
// storage pressure caused by the write.
func (s *CampaignService) afterMutation(ctx context.Context, collections ...string) {
	s.Cache.Invalidate(collections...)
	if s.Quota == nil {
		return
	}
	report, err := s.Quota.Relieve(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("⚠️ local storage pressure could not be relieved")
		return
	}
	if report.Level != quota.LevelNormal {
		s.Logger.Info().Str("level", report.Level.String()).Int64("used", report.Used).Msg("local storage under pressure")
	}
}

// ensureCapacity asks the quota manager for room before a local write.
func (s *CampaignService) ensureCapacity(ctx context.Context, incoming int) error {
	if s.Quota == nil {
		return nil
	}
	return s.Quota.EnsureCapacity(ctx, int64(incoming))
}
