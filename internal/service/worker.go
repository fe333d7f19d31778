package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/unclebandit/darb-backend/internal/media"
	"github.com/unclebandit/darb-backend/internal/queue"
)

// AssetAttacher defines the method the worker needs
type AssetAttacher interface {
	AttachAssetURL(ctx context.Context, collection, recordID, assetID, url string) error
}

// UploadWorker stores optimized images outside their records
type UploadWorker struct {
	Uploader     media.Uploader
	Records      AssetAttacher
	PathTemplate string
	Logger       zerolog.Logger
}

// Constructor
func NewUploadWorker(uploader media.Uploader, records AssetAttacher, logger zerolog.Logger) *UploadWorker {
	return &UploadWorker{
		Uploader:     uploader,
		Records:      records,
		PathTemplate: DefaultObjectPath,
		Logger:       logger.With().Str("component", "upload-worker").Logger(),
	}
}

// Handle uploads one job and points the asset at its new URL.
func (w *UploadWorker) Handle(ctx context.Context, job queue.UploadJob) error {
	objectPath := RenderTemplate(w.PathTemplate, map[string]string{
		"collection": job.Collection,
		"record":     job.RecordID,
		"asset":      job.AssetID,
		"role":       string(job.Role),
	})

	url, err := w.Uploader.Put(ctx, objectPath, job.Data)
	if err != nil {
		w.Logger.Warn().Err(err).Str("asset", job.AssetID).Msg("⚠️ upload failed")
		return err
	}
	if err := w.Records.AttachAssetURL(ctx, job.Collection, job.RecordID, job.AssetID, url); err != nil {
		w.Logger.Warn().Err(err).Str("asset", job.AssetID).Msg("⚠️ uploaded asset could not be attached")
		return err
	}

	w.Logger.Info().Str("asset", job.AssetID).Str("url", url).Msg("✅ asset uploaded")
	return nil
}
