package queue

import (
	"context"
	"encoding/json"
	"fmt"

	zlog "github.com/rs/zerolog/log"

	"github.com/unclebandit/darb-backend/internal/model"
)

// TopicAssetUploads carries optimized images waiting for external storage.
const TopicAssetUploads = "asset_uploads"

type UploadJob struct {
	Collection string          `json:"collection"`
	RecordID   string          `json:"recordId"`
	AssetID    string          `json:"assetId"`
	Role       model.AssetRole `json:"role"`
	Data       []byte          `json:"data"`
}

// DecodeUploadJob accepts a job published in process or its JSON form read
// from a broker.
func DecodeUploadJob(payload any) (UploadJob, error) {
	switch v := payload.(type) {
	case UploadJob:
		return v, nil
	case *UploadJob:
		if v == nil {
			return UploadJob{}, fmt.Errorf("nil upload job")
		}
		return *v, nil
	case []byte:
		var job UploadJob
		err := json.Unmarshal(v, &job)
		return job, err
	case json.RawMessage:
		var job UploadJob
		err := json.Unmarshal(v, &job)
		return job, err
	default:
		return UploadJob{}, fmt.Errorf("unexpected upload payload %T", payload)
	}
}

// StartUploadSubscriber routes upload jobs on topic to handle. Malformed
// jobs are dropped rather than retried.
func StartUploadSubscriber(q Queue, topic string, handle func(ctx context.Context, job UploadJob) error) error {
	return q.Subscribe(topic, func(payload any) error {
		job, err := DecodeUploadJob(payload)
		if err != nil {
			zlog.Warn().Err(err).Msg("⚠️ invalid upload job")
			return nil
		}
		zlog.Debug().
			Str("collection", job.Collection).
			Str("record", job.RecordID).
			Str("asset", job.AssetID).
			Msg("📩 processing upload job")
		return handle(context.Background(), job)
	})
}
