// internal/model/asset.go
package model

import "fmt"

type AssetRole string

const (
	RoleMainImage      AssetRole = "main-image"
	RoleTeamPhoto      AssetRole = "team-photo"
	RoleMilestoneImage AssetRole = "milestone-image"
	RolePitchImage     AssetRole = "pitch-image"
)

func (r AssetRole) Valid() bool {
	switch r {
	case RoleMainImage, RoleTeamPhoto, RoleMilestoneImage, RolePitchImage:
		return true
	}
	return false
}

// AssetKind discriminates the ImageAsset variants.
type AssetKind string

const (
	// AssetInline carries its encoded bytes in Preview.
	AssetInline AssetKind = "inline"
	// AssetExternal lives outside the record at URL. While UploadPending is
	// set the URL is empty and Preview holds the thumbnail.
	AssetExternal AssetKind = "external"
	// AssetPending holds a raw file that has not been optimized yet.
	AssetPending AssetKind = "pending"
)

type FileMeta struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

type ImageAsset struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Role          AssetRole `json:"role"`
	Kind          AssetKind `json:"kind"`
	ContentType   string    `json:"contentType,omitempty"`
	URL           string    `json:"url,omitempty"`
	Preview       string    `json:"preview,omitempty"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
	Optimized     bool      `json:"optimized"`
	UploadPending bool      `json:"uploadPending,omitempty"`
	Original      FileMeta  `json:"original"`

	// Data is the raw file of a pending asset, base64 in JSON. The optimizer
	// clears it before the record is stored.
	Data []byte `json:"data,omitempty"`
}

// PendingAsset wraps a raw upload that still has to go through the optimizer.
func PendingAsset(name string, role AssetRole, contentType string, data []byte) ImageAsset {
	return ImageAsset{
		Name:        name,
		Role:        role,
		Kind:        AssetPending,
		ContentType: contentType,
		Data:        data,
		Original: FileMeta{
			Name:        name,
			ContentType: contentType,
			Size:        int64(len(data)),
		},
	}
}

// ExternalAsset references an already stored image.
func ExternalAsset(name string, role AssetRole, url string) ImageAsset {
	return ImageAsset{Name: name, Role: role, Kind: AssetExternal, URL: url}
}

func (a ImageAsset) NeedsProcessing() bool {
	return a.Kind == AssetPending || len(a.Data) > 0
}

// Label is the name used to refer to the asset in user-facing errors.
func (a ImageAsset) Label() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Original.Name != "" {
		return a.Original.Name
	}
	return string(a.Role)
}

// CheckPersistable enforces that a stored asset has no live file attached
// and can be displayed from either its url or its preview.
func (a ImageAsset) CheckPersistable() error {
	if a.NeedsProcessing() {
		return fmt.Errorf("asset %q has not been processed", a.Label())
	}
	if a.URL == "" && a.Preview == "" {
		return fmt.Errorf("asset %q has neither url nor preview", a.Label())
	}
	return nil
}
