package repository

import (
	"context"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
)

type UserListRepositoryInterface interface {
	Get(ctx context.Context, kind model.ListKind, userID string) (*model.UserList, error)
	Save(ctx context.Context, l *model.UserList) error
}

// UserListRepository keeps one record per (kind, user) under a
// deterministic id, so every backend agrees on where a list lives.
type UserListRepository struct {
	Store Adapter
}

func NewUserListRepository(store Adapter) *UserListRepository {
	return &UserListRepository{Store: store}
}

// Get returns the stored list, or an empty unsaved one when none exists.
// Any other read failure is returned as is: saving a list built from a
// failed read would overwrite the stored one.
func (r *UserListRepository) Get(ctx context.Context, kind model.ListKind, userID string) (*model.UserList, error) {
	l, err := getRecord[model.UserList](ctx, r.Store, model.CollectionUserLists, model.UserListID(kind, userID))
	if appErrors.IsNotFound(err) {
		return &model.UserList{
			ID:          model.UserListID(kind, userID),
			UserID:      userID,
			Kind:        kind,
			CampaignIDs: []string{},
		}, nil
	}
	return l, err
}

func (r *UserListRepository) Save(ctx context.Context, l *model.UserList) error {
	l.ID = model.UserListID(l.Kind, l.UserID)
	if l.Origin == "" {
		return createRecord(ctx, r.Store, model.CollectionUserLists, l)
	}
	err := updateRecord(ctx, r.Store, model.CollectionUserLists, l.ID, l)
	if appErrors.IsNotFound(err) {
		// evicted or deleted since it was read
		return createRecord(ctx, r.Store, model.CollectionUserLists, l)
	}
	return err
}

var _ UserListRepositoryInterface = (*UserListRepository)(nil)
