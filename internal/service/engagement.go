package service

import (
	"context"

	"github.com/unclebandit/darb-backend/internal/cache"
	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/repository"
)

// viewer maps an empty user to the anonymous device list.
func viewer(userID string) string {
	if userID == "" {
		return model.AnonymousUser
	}
	return userID
}

// TrackView moves the campaign to the front of the user's viewed list.
// Anonymous views go to a separate list that is never merged with a user's.
func (s *CampaignService) TrackView(ctx context.Context, campaignID, userID string) (*model.UserList, error) {
	if _, err := s.Campaigns.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.updateList(ctx, model.ListViewed, viewer(userID), func(l *model.UserList) {
		l.MoveToFront(campaignID)
	})
}

// ToggleFavorite flips the campaign's membership in the user's favorites and
// reports whether it is now a favorite.
func (s *CampaignService) ToggleFavorite(ctx context.Context, campaignID, userID string) (bool, error) {
	if userID == "" {
		return false, appErrors.NewPermission("favorite campaign")
	}
	if _, err := s.Campaigns.GetByID(ctx, campaignID); err != nil {
		return false, err
	}

	var favorite bool
	_, err := s.updateList(ctx, model.ListFavorites, userID, func(l *model.UserList) {
		if l.Contains(campaignID) {
			l.Remove(campaignID)
			favorite = false
			return
		}
		l.MoveToFront(campaignID)
		favorite = true
	})
	return favorite, err
}

// updateList runs change on a user's list under that list's lock and saves
// the result.
func (s *CampaignService) updateList(ctx context.Context, kind model.ListKind, userID string, change func(*model.UserList)) (*model.UserList, error) {
	unlock := s.Locks.Lock(model.UserListID(kind, userID))
	defer unlock()

	l, err := s.Lists.Get(ctx, kind, userID)
	if err != nil {
		return nil, err
	}
	change(l)
	if err := s.Lists.Save(ctx, l); err != nil {
		return nil, err
	}
	s.afterMutation(ctx, model.CollectionUserLists)
	return l, nil
}

func (s *CampaignService) ListViewed(ctx context.Context, userID string) ([]model.Campaign, error) {
	return s.listFromUserList(ctx, model.ListViewed, viewer(userID))
}

func (s *CampaignService) ListFavorites(ctx context.Context, userID string) ([]model.Campaign, error) {
	if userID == "" {
		return nil, appErrors.NewPermission("list favorites")
	}
	return s.listFromUserList(ctx, model.ListFavorites, userID)
}

func (s *CampaignService) ListFunded(ctx context.Context, userID string) ([]model.Campaign, error) {
	if userID == "" {
		return nil, appErrors.NewPermission("list funded campaigns")
	}
	return s.listFromUserList(ctx, model.ListFunded, userID)
}

// ListCreated returns the campaigns created by userID, newest first.
func (s *CampaignService) ListCreated(ctx context.Context, userID string) ([]model.Campaign, error) {
	if userID == "" {
		return nil, appErrors.NewPermission("list created campaigns")
	}
	return s.ListCampaigns(ctx, repository.Where("creator.id", userID))
}

// listFromUserList resolves a list's ids in order, skipping campaigns that
// no longer exist.
func (s *CampaignService) listFromUserList(ctx context.Context, kind model.ListKind, userID string) ([]model.Campaign, error) {
	key := cache.NewKey("list-"+string(kind), []string{model.CollectionUserLists, model.CollectionCampaigns}, userID)
	return cache.GetOrFetch(ctx, s.Cache, key, cache.ListWindow, func(ctx context.Context) ([]model.Campaign, error) {
		l, err := s.Lists.Get(ctx, kind, userID)
		if err != nil {
			return nil, err
		}
		campaigns := make([]model.Campaign, 0, len(l.CampaignIDs))
		for _, id := range l.CampaignIDs {
			c, err := s.Campaigns.GetByID(ctx, id)
			if appErrors.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			campaigns = append(campaigns, *c)
		}
		return campaigns, nil
	})
}
