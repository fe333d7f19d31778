// Package media turns raw uploaded images into size-bounded display and
// thumbnail variants and decides how each one is stored.
package media

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/unclebandit/darb-backend/internal/model"
)

// Profile holds the limits applied to one asset role.
type Profile struct {
	MaxWidth     int     `yaml:"max_width"`
	MaxHeight    int     `yaml:"max_height"`
	Quality      float64 `yaml:"quality"`
	ThumbnailMax int     `yaml:"thumbnail_max"`
}

// ThumbnailQuality is the encode quality of every thumbnail.
const ThumbnailQuality = 0.6

func DefaultProfiles() map[model.AssetRole]Profile {
	return map[model.AssetRole]Profile{
		model.RoleMainImage:      {MaxWidth: 1200, MaxHeight: 800, Quality: 0.8, ThumbnailMax: 400},
		model.RolePitchImage:     {MaxWidth: 1500, MaxHeight: 1000, Quality: 0.8, ThumbnailMax: 600},
		model.RoleTeamPhoto:      {MaxWidth: 300, MaxHeight: 300, Quality: 0.7, ThumbnailMax: 300},
		model.RoleMilestoneImage: {MaxWidth: 800, MaxHeight: 600, Quality: 0.7, ThumbnailMax: 300},
	}
}

// LoadProfiles returns the default profiles with any overrides from the YAML
// file at path applied. An empty path yields the defaults.
//
//	main-image:
//	  max_width: 1600
//	  max_height: 1000
func LoadProfiles(path string) (map[model.AssetRole]Profile, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media profiles: %w", err)
	}
	var overrides map[model.AssetRole]Profile
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse media profiles: %w", err)
	}

	for role, o := range overrides {
		if !role.Valid() {
			return nil, fmt.Errorf("unknown asset role %q in media profiles", role)
		}
		p := profiles[role]
		if o.MaxWidth > 0 {
			p.MaxWidth = o.MaxWidth
		}
		if o.MaxHeight > 0 {
			p.MaxHeight = o.MaxHeight
		}
		if o.Quality > 0 && o.Quality <= 1 {
			p.Quality = o.Quality
		}
		if o.ThumbnailMax > 0 {
			p.ThumbnailMax = o.ThumbnailMax
		}
		profiles[role] = p
	}
	return profiles, nil
}
