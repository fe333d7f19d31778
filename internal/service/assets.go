package service

import (
	"context"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/media"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/queue"
	"github.com/unclebandit/darb-backend/internal/repository"
)

// processAssets optimizes the pending assets of c. Either every asset is
// processed or c is left untouched and the failing asset is reported.
func (s *CampaignService) processAssets(ctx context.Context, c *model.Campaign) ([]media.Upload, error) {
	assets := c.Assets()
	var pending bool
	for _, a := range assets {
		if a.NeedsProcessing() {
			pending = true
			break
		}
	}

	var uploads []media.Upload
	if pending {
		if s.Optimizer == nil {
			return nil, appErrors.NewValidation("assets", "image uploads are not supported")
		}
		var err error
		if uploads, err = s.Optimizer.ProcessAll(ctx, assets); err != nil {
			return nil, err
		}
	}
	if err := checkAssetsPersistable(c); err != nil {
		return nil, err
	}
	return uploads, nil
}

// enqueueUploads hands optimized images that are too large to inline to the
// upload pipeline. A failed publish leaves the asset showing its thumbnail.
func (s *CampaignService) enqueueUploads(collection, recordID string, uploads []media.Upload) {
	if s.Queue == nil || len(uploads) == 0 {
		return
	}
	for _, u := range uploads {
		job := queue.UploadJob{
			Collection: collection,
			RecordID:   recordID,
			AssetID:    u.AssetID,
			Role:       u.Role,
			Data:       u.Data,
		}
		if err := s.Queue.Publish(s.UploadTopic, job); err != nil {
			s.Logger.Warn().Err(err).
				Str("record", recordID).
				Str("asset", u.AssetID).
				Msg("⚠️ failed to enqueue asset upload")
		}
	}
}

func (s *CampaignService) repositoryFor(collection string) (repository.CampaignRepositoryInterface, error) {
	switch collection {
	case model.CollectionCampaigns:
		return s.Campaigns, nil
	case model.CollectionDrafts:
		return s.Drafts, nil
	default:
		return nil, appErrors.NewValidation("collection", "assets are only stored on campaigns and drafts")
	}
}

// AttachAssetURL records where an uploaded asset now lives and clears its
// pending flag.
func (s *CampaignService) AttachAssetURL(ctx context.Context, collection, recordID, assetID, url string) error {
	repo, err := s.repositoryFor(collection)
	if err != nil {
		return err
	}
	unlock := s.Locks.Lock(recordID)
	defer unlock()

	c, err := repo.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	var found bool
	for _, a := range c.Assets() {
		if a.ID != assetID {
			continue
		}
		a.Kind = model.AssetExternal
		a.URL = url
		a.UploadPending = false
		found = true
	}
	if !found {
		return appErrors.NewNotFound("assets", assetID)
	}
	if err := repo.Update(ctx, c); err != nil {
		return err
	}
	s.afterMutation(ctx, collection)
	if collection == model.CollectionCampaigns {
		s.remember(c)
	}
	return nil
}
