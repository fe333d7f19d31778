package service

import (
	"context"

	"github.com/unclebandit/darb-backend/internal/cache"
	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
)

// Contribute records a funding action. It raises the campaign total, stores
// a pending contribution and puts the campaign at the front of the user's
// funded list. The writes are not atomic: when the contribution cannot be
// stored after the total was raised, a PartialContributionError is returned.
func (s *CampaignService) Contribute(ctx context.Context, campaignID, userID string, amount float64, milestoneIDs []string) (*model.Contribution, error) {
	if userID == "" {
		return nil, appErrors.NewPermission("contribute")
	}
	if amount <= 0 {
		return nil, appErrors.NewValidation("amount", "must be greater than zero")
	}

	unlock := s.Locks.Lock(campaignID)
	defer unlock()

	c, err := s.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusActive {
		return nil, appErrors.NewValidation("status", "campaign is not accepting contributions")
	}
	if c.MinimumInvestment > 0 && amount < c.MinimumInvestment {
		return nil, appErrors.NewValidation("amount", "is below the campaign's minimum investment")
	}
	if err := checkMilestones(c, milestoneIDs); err != nil {
		return nil, err
	}

	c.CurrentAmount += amount
	if err := s.Campaigns.Update(ctx, c); err != nil {
		return nil, err
	}
	s.remember(c)

	contribution := &model.Contribution{
		CampaignID:   campaignID,
		InvestorID:   userID,
		Amount:       amount,
		MilestoneIDs: milestoneIDs,
		Status:       model.ContributionPending,
	}
	if contribution.MilestoneIDs == nil {
		contribution.MilestoneIDs = []string{}
	}
	if err := s.Contributions.Create(ctx, contribution); err != nil {
		s.Logger.Error().Err(err).
			Str("campaign", campaignID).
			Str("investor", userID).
			Float64("amount", amount).
			Msg("❌ campaign total raised but contribution not recorded")
		s.afterMutation(ctx, model.CollectionCampaigns)
		return nil, &appErrors.PartialContributionError{CampaignID: campaignID, Amount: amount, Err: err}
	}

	if _, err := s.updateList(ctx, model.ListFunded, userID, func(l *model.UserList) {
		l.Prepend(campaignID)
	}); err != nil {
		s.Logger.Warn().Err(err).Str("investor", userID).Msg("⚠️ funded list not updated")
	}

	s.Logger.Info().
		Str("campaign", campaignID).
		Str("contribution", contribution.ID).
		Float64("amount", amount).
		Msg("✅ contribution recorded")
	s.afterMutation(ctx, model.CollectionCampaigns, model.CollectionContributions)
	return contribution, nil
}

func checkMilestones(c *model.Campaign, ids []string) error {
	known := make(map[string]bool, len(c.Milestones))
	for _, m := range c.Milestones {
		known[m.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return appErrors.NewValidation("milestoneIds", "unknown milestone "+id)
		}
	}
	return nil
}

// CompleteContribution moves a pending contribution to completed. It is the
// only change a contribution ever sees.
func (s *CampaignService) CompleteContribution(ctx context.Context, id string) (*model.Contribution, error) {
	unlock := s.Locks.Lock(id)
	defer unlock()

	c, err := s.Contributions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.ContributionPending {
		return nil, appErrors.NewValidation("status", "contribution is already completed")
	}
	c.Status = model.ContributionCompleted
	if err := s.Contributions.Update(ctx, c); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, model.CollectionContributions)
	return c, nil
}

// ListContributions returns a user's contribution history. It backs
// notification style views and is cached for longer than other lists.
func (s *CampaignService) ListContributions(ctx context.Context, userID string) ([]model.Contribution, error) {
	if userID == "" {
		return nil, appErrors.NewPermission("list contributions")
	}
	key := cache.NewKey("listContributions", []string{model.CollectionContributions}, userID)
	return cache.GetOrFetch(ctx, s.Cache, key, cache.NotificationWindow, func(ctx context.Context) ([]model.Contribution, error) {
		return s.Contributions.ListByInvestor(ctx, userID)
	})
}
