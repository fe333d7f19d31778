package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
)

// validateCampaign checks the fields a campaign needs before it is stored.
// Drafts may be saved without milestones.
func validateCampaign(c *model.Campaign, draft bool) error {
	required := []struct {
		field string
		value string
	}{
		{"title", c.Title},
		{"description", c.Description},
		{"category", c.Category},
		{"location", c.Location},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return appErrors.NewValidation(r.field, "is required")
		}
	}

	if c.TargetAmount <= 0 {
		return appErrors.NewValidation("targetAmount", "must be greater than zero")
	}
	if c.MinimumInvestment < 0 {
		return appErrors.NewValidation("minimumInvestment", "must not be negative")
	}
	if c.MinimumInvestment > c.TargetAmount {
		return appErrors.NewValidation("minimumInvestment", "must not exceed targetAmount")
	}

	if !draft && len(c.Milestones) == 0 {
		return appErrors.NewValidation("milestones", "at least one milestone is required")
	}
	for i := range c.Milestones {
		m := &c.Milestones[i]
		if strings.TrimSpace(m.Title) == "" {
			return appErrors.NewValidation(fmt.Sprintf("milestones[%d].title", i), "is required")
		}
		if m.Amount < 0 {
			return appErrors.NewValidation(fmt.Sprintf("milestones[%d].amount", i), "must not be negative")
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
	}

	for _, a := range c.Assets() {
		if !a.Role.Valid() {
			return appErrors.NewValidation("assets", fmt.Sprintf("asset %q has unknown role %q", a.Label(), a.Role))
		}
	}
	return nil
}

// checkAssetsPersistable rejects records carrying unprocessed or empty assets.
func checkAssetsPersistable(c *model.Campaign) error {
	for _, a := range c.Assets() {
		if err := a.CheckPersistable(); err != nil {
			return appErrors.NewValidation("assets", err.Error())
		}
	}
	return nil
}

// fields that an edit may not touch directly
var protectedFields = map[string]string{
	"status":        "use publish or close to change status",
	"currentAmount": "changes through contributions or an admin adjustment",
	"creator":       "cannot be reassigned",
}

// ignoredFields are maintained by the persistence layer.
var ignoredFields = map[string]bool{
	"id":        true,
	"origin":    true,
	"createdAt": true,
	"updatedAt": true,
}

// mergeCampaign applies a JSON merge of the top-level fields in patch onto
// current.
func mergeCampaign(current *model.Campaign, patch []byte) (*model.Campaign, error) {
	if !gjson.ValidBytes(patch) || !gjson.ParseBytes(patch).IsObject() {
		return nil, appErrors.NewValidation("patch", "must be a JSON object")
	}
	body, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}

	var mergeErr error
	gjson.ParseBytes(patch).ForEach(func(key, value gjson.Result) bool {
		field := key.String()
		if reason, ok := protectedFields[field]; ok {
			mergeErr = appErrors.NewValidation(field, reason)
			return false
		}
		if ignoredFields[field] {
			return true
		}
		if strings.ContainsAny(field, ".*?") {
			mergeErr = appErrors.NewValidation(field, "is not a campaign field")
			return false
		}
		body, mergeErr = sjson.SetRawBytes(body, field, []byte(value.Raw))
		return mergeErr == nil
	})
	if mergeErr != nil {
		return nil, mergeErr
	}

	var merged model.Campaign
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, appErrors.NewValidation("patch", err.Error())
	}
	return &merged, nil
}
