package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/unclebandit/darb-backend/internal/cache"
	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/repository"
)

// saveSize estimates how many bytes a record will take in the local store.
func saveSize(c *model.Campaign) int {
	b, err := json.Marshal(c)
	if err != nil {
		return 0
	}
	return len(b)
}

func (s *CampaignService) CreateDraft(ctx context.Context, input model.Campaign, creatorID string) (*model.Campaign, error) {
	if creatorID == "" {
		return nil, appErrors.NewPermission("save draft")
	}
	c := input.Clone()
	c.ID = ""
	c.Status = model.StatusDraft
	c.CurrentAmount = 0
	c.Creator.ID = creatorID
	c.CreatedAt = time.Time{}

	if err := validateCampaign(&c, true); err != nil {
		return nil, err
	}
	uploads, err := s.processAssets(ctx, &c)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCapacity(ctx, saveSize(&c)); err != nil {
		return nil, err
	}
	if err := s.Drafts.Create(ctx, &c); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, model.CollectionDrafts)
	s.enqueueUploads(model.CollectionDrafts, c.ID, uploads)
	return &c, nil
}

func (s *CampaignService) UpdateDraft(ctx context.Context, id string, patch []byte) (*model.Campaign, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()

	current, err := s.Drafts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := mergeCampaign(current, patch)
	if err != nil {
		return nil, err
	}
	if err := validateCampaign(c, true); err != nil {
		return nil, err
	}
	uploads, err := s.processAssets(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCapacity(ctx, saveSize(c)); err != nil {
		return nil, err
	}
	if err := s.Drafts.Update(ctx, c); err != nil {
		return nil, err
	}

	s.afterMutation(ctx, model.CollectionDrafts)
	s.enqueueUploads(model.CollectionDrafts, c.ID, uploads)
	return c, nil
}

// PublishDraft turns a draft into an active campaign and removes the draft.
// The new campaign gets its own id.
func (s *CampaignService) PublishDraft(ctx context.Context, id string) (*model.Campaign, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()

	draft, err := s.Drafts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !draft.Status.CanTransition(model.StatusActive) {
		return nil, appErrors.NewValidation("status", "only drafts can be published")
	}

	c := *draft
	c.ID = ""
	c.Origin = ""
	c.CreatedAt = time.Time{}
	c.Status = model.StatusActive
	if err := validateCampaign(&c, false); err != nil {
		return nil, err
	}
	if err := checkAssetsPersistable(&c); err != nil {
		return nil, err
	}
	if err := s.Campaigns.Create(ctx, &c); err != nil {
		return nil, err
	}

	if err := s.Drafts.Delete(ctx, id); err != nil && !appErrors.IsNotFound(err) {
		s.Logger.Warn().Err(err).Str("draft", id).Str("campaign", c.ID).Msg("⚠️ published draft could not be removed")
	}
	s.Logger.Info().Str("draft", id).Str("campaign", c.ID).Msg("✅ draft published")
	s.afterMutation(ctx, model.CollectionDrafts, model.CollectionCampaigns)
	s.remember(&c)
	return &c, nil
}

func (s *CampaignService) DeleteDraft(ctx context.Context, id string) error {
	unlock := s.Locks.Lock(id)
	defer unlock()

	if err := s.Drafts.Delete(ctx, id); err != nil {
		return err
	}
	s.afterMutation(ctx, model.CollectionDrafts)
	return nil
}

func (s *CampaignService) ListDrafts(ctx context.Context, creatorID string) ([]model.Campaign, error) {
	if creatorID == "" {
		return nil, appErrors.NewPermission("list drafts")
	}
	key := cache.NewKey("listDrafts", []string{model.CollectionDrafts}, creatorID)
	return cache.GetOrFetch(ctx, s.Cache, key, cache.ListWindow, func(ctx context.Context) ([]model.Campaign, error) {
		return s.Drafts.List(ctx, repository.Where("creator.id", creatorID))
	})
}
