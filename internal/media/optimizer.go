package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/metrics"
	"github.com/unclebandit/darb-backend/internal/model"
)

// InlineThreshold is the optimized size below which an asset is embedded in
// its record instead of being uploaded.
const InlineThreshold = 200 * 1024

const dataURLPrefix = "data:image/jpeg;base64,"

// DataURL encodes a JPEG as an inline data URL.
func DataURL(data []byte) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data)
}

// Placement is the storage strategy for an optimized asset of size bytes.
func Placement(size int) model.AssetKind {
	if size < InlineThreshold {
		return model.AssetInline
	}
	return model.AssetExternal
}

// Upload is an optimized image that must be stored outside its record.
type Upload struct {
	AssetID string
	Role    model.AssetRole
	Data    []byte
}

type Optimizer struct {
	Profiles map[model.AssetRole]Profile
	Logger   zerolog.Logger
}

func NewOptimizer(profiles map[model.AssetRole]Profile, logger zerolog.Logger) *Optimizer {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Optimizer{Profiles: profiles, Logger: logger.With().Str("component", "media").Logger()}
}

// Optimize processes one pending asset. The returned Upload is nil for
// inline assets.
func (o *Optimizer) Optimize(asset model.ImageAsset) (model.ImageAsset, *Upload, error) {
	profile, ok := o.Profiles[asset.Role]
	if !ok {
		return asset, nil, appErrors.NewAssetProcessing(asset.Label(), string(asset.Role), fmt.Errorf("unknown asset role"))
	}
	if len(asset.Data) == 0 {
		return asset, nil, appErrors.NewAssetProcessing(asset.Label(), string(asset.Role), fmt.Errorf("no file data"))
	}

	img, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		return asset, nil, appErrors.NewAssetProcessing(asset.Label(), string(asset.Role), err)
	}
	display, err := resampleImage(img, Constraints{MaxWidth: profile.MaxWidth, MaxHeight: profile.MaxHeight, Quality: profile.Quality})
	if err != nil {
		return asset, nil, appErrors.NewAssetProcessing(asset.Label(), string(asset.Role), err)
	}
	thumb, err := resampleImage(img, Constraints{MaxWidth: profile.ThumbnailMax, MaxHeight: profile.ThumbnailMax, Quality: ThumbnailQuality})
	if err != nil {
		return asset, nil, appErrors.NewAssetProcessing(asset.Label(), string(asset.Role), err)
	}

	out, upload := place(asset, display, thumb)
	metrics.AssetsProcessed.WithLabelValues(string(out.Role), string(out.Kind)).Inc()
	o.Logger.Debug().
		Str("asset", out.Label()).
		Str("role", string(out.Role)).
		Str("kind", string(out.Kind)).
		Int("bytes", len(display.Data)).
		Msg("optimized asset")
	return out, upload, nil
}

// place builds the stored form of an asset from its display and thumbnail
// variants.
func place(asset model.ImageAsset, display, thumb Result) (model.ImageAsset, *Upload) {
	out := asset
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Name == "" {
		out.Name = asset.Original.Name
	}
	out.Data = nil
	out.Optimized = true
	out.ContentType = "image/jpeg"
	if out.Original.Name == "" {
		out.Original.Name = asset.Name
	}
	if out.Original.ContentType == "" {
		out.Original.ContentType = asset.ContentType
	}
	out.Original.Width = display.SourceWidth
	out.Original.Height = display.SourceHeight
	if out.Original.Size == 0 {
		out.Original.Size = int64(len(asset.Data))
	}
	out.Thumbnail = DataURL(thumb.Data)

	if Placement(len(display.Data)) == model.AssetInline {
		out.Kind = model.AssetInline
		out.Preview = DataURL(display.Data)
		out.URL = ""
		out.UploadPending = false
		return out, nil
	}

	out.Kind = model.AssetExternal
	out.Preview = out.Thumbnail
	out.URL = ""
	out.UploadPending = true
	return out, &Upload{AssetID: out.ID, Role: out.Role, Data: display.Data}
}

// ProcessAll optimizes every pending asset concurrently. Assets are only
// replaced when all of them succeed; the first failure is returned and
// nothing is modified.
func (o *Optimizer) ProcessAll(ctx context.Context, assets []*model.ImageAsset) ([]Upload, error) {
	type outcome struct {
		asset  model.ImageAsset
		upload *Upload
	}
	results := make([]*outcome, len(assets))

	g, ctx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		if asset == nil || !asset.NeedsProcessing() {
			continue
		}
		pending := *asset
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, upload, err := o.Optimize(pending)
			if err != nil {
				return err
			}
			results[i] = &outcome{asset: out, upload: upload}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var uploads []Upload
	for i, r := range results {
		if r == nil {
			continue
		}
		*assets[i] = r.asset
		if r.upload != nil {
			uploads = append(uploads, *r.upload)
		}
	}
	return uploads, nil
}
