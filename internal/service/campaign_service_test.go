package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/darb-backend/internal/cache"
	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/media"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/queue"
	"github.com/unclebandit/darb-backend/internal/repository"
	"github.com/unclebandit/darb-backend/internal/service"
	"github.com/unclebandit/darb-backend/internal/store"
)

// MockDownAdapter is a remote store that is always unreachable.
type MockDownAdapter struct{}

func (MockDownAdapter) Name() model.Origin { return model.OriginRemote }

func (MockDownAdapter) err(op string) error {
	return appErrors.NewBackendUnavailable("mock", op, errors.New("network unreachable"))
}

func (m MockDownAdapter) Create(context.Context, string, repository.Document) (repository.Document, error) {
	return repository.Document{}, m.err("create")
}

func (m MockDownAdapter) Get(context.Context, string, string) (repository.Document, error) {
	return repository.Document{}, m.err("get")
}

func (m MockDownAdapter) Update(context.Context, string, string, repository.Patch) (repository.Document, error) {
	return repository.Document{}, m.err("update")
}

func (m MockDownAdapter) Delete(context.Context, string, string) (bool, error) {
	return false, m.err("delete")
}

func (m MockDownAdapter) List(context.Context, string, repository.Filter) ([]repository.Document, error) {
	return nil, m.err("list")
}

// MockCountingAdapter counts List calls on top of an in-memory store.
type MockCountingAdapter struct {
	*repository.MemoryAdapter
	mu    sync.Mutex
	lists int
}

func (m *MockCountingAdapter) List(ctx context.Context, collection string, filter repository.Filter) ([]repository.Document, error) {
	m.mu.Lock()
	m.lists++
	m.mu.Unlock()
	return m.MemoryAdapter.List(ctx, collection, filter)
}

func (m *MockCountingAdapter) Lists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

// MockFlakyAdapter is an in-memory remote store that can be taken down, or
// made to fail the next Get on a collection.
type MockFlakyAdapter struct {
	*repository.MemoryAdapter
	mu       sync.Mutex
	down     bool
	failGets map[string]int
}

func (m *MockFlakyAdapter) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *MockFlakyAdapter) FailNextGet(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGets == nil {
		m.failGets = make(map[string]int)
	}
	m.failGets[collection]++
}

func (m *MockFlakyAdapter) fail(op, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fail := m.down
	if op == "get" && m.failGets[collection] > 0 {
		m.failGets[collection]--
		fail = true
	}
	if fail {
		return appErrors.NewBackendUnavailable("mock", op, errors.New("connection reset"))
	}
	return nil
}

func (m *MockFlakyAdapter) Create(ctx context.Context, collection string, doc repository.Document) (repository.Document, error) {
	if err := m.fail("create", collection); err != nil {
		return repository.Document{}, err
	}
	return m.MemoryAdapter.Create(ctx, collection, doc)
}

func (m *MockFlakyAdapter) Get(ctx context.Context, collection, id string) (repository.Document, error) {
	if err := m.fail("get", collection); err != nil {
		return repository.Document{}, err
	}
	return m.MemoryAdapter.Get(ctx, collection, id)
}

func (m *MockFlakyAdapter) Update(ctx context.Context, collection, id string, patch repository.Patch) (repository.Document, error) {
	if err := m.fail("update", collection); err != nil {
		return repository.Document{}, err
	}
	return m.MemoryAdapter.Update(ctx, collection, id, patch)
}

func (m *MockFlakyAdapter) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := m.fail("delete", collection); err != nil {
		return false, err
	}
	return m.MemoryAdapter.Delete(ctx, collection, id)
}

func (m *MockFlakyAdapter) List(ctx context.Context, collection string, filter repository.Filter) ([]repository.Document, error) {
	if err := m.fail("list", collection); err != nil {
		return nil, err
	}
	return m.MemoryAdapter.List(ctx, collection, filter)
}

// MockOptimizer marks every pending asset as an external upload.
type MockOptimizer struct {
	fail error
}

func (o *MockOptimizer) ProcessAll(_ context.Context, assets []*model.ImageAsset) ([]media.Upload, error) {
	if o.fail != nil {
		return nil, o.fail
	}
	var uploads []media.Upload
	for i, a := range assets {
		if !a.NeedsProcessing() {
			continue
		}
		data := a.Data
		a.ID = fmt.Sprintf("asset-%d", i)
		a.Kind = model.AssetExternal
		a.Data = nil
		a.Optimized = true
		a.UploadPending = true
		a.Preview = media.DataURL([]byte("thumb"))
		uploads = append(uploads, media.Upload{AssetID: a.ID, Role: a.Role, Data: data})
	}
	return uploads, nil
}

func newService(t *testing.T, adapter repository.Adapter) *service.CampaignService {
	t.Helper()
	return service.NewCampaignService(adapter, cache.New(), &MockOptimizer{}, nil, nil, zerolog.Nop())
}

func campaignInput() model.Campaign {
	return model.Campaign{
		Title:             "Solar kiosks",
		Description:       "Solar charging kiosks for rural markets",
		Category:          "energy",
		Location:          "Nairobi",
		TargetAmount:      50000,
		MinimumInvestment: 100,
		Creator:           model.Creator{Name: "Amina"},
		Milestones: []model.Milestone{
			{Title: "Prototype", Amount: 10000},
			{Title: "Pilot", Amount: 40000},
		},
	}
}

func mustCreate(t *testing.T, s *service.CampaignService, creator string) *model.Campaign {
	t.Helper()
	c, err := s.CreateCampaign(context.Background(), campaignInput(), creator)
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return c
}

func TestCreateCampaignFallsBackToLocalStore(t *testing.T) {
	ctx := context.Background()
	local := repository.NewLocalAdapter(store.NewMemoryStore(1 << 20))
	failover := repository.NewFailover(MockDownAdapter{}, local, nil, time.Second, zerolog.Nop())
	s := newService(t, failover)

	c, err := s.CreateCampaign(ctx, campaignInput(), "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Origin != model.OriginLocal || !repository.IsLocalID(c.ID) {
		t.Errorf("expected a local record, got %s %s", c.Origin, c.ID)
	}
	if c.Status != model.StatusActive || c.Creator.ID != "u1" {
		t.Errorf("unexpected campaign %+v", c)
	}

	got, err := s.GetCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != c.Title || len(got.Milestones) != 2 {
		t.Errorf("unexpected read back %+v", got)
	}

	list, err := s.ListCampaigns(ctx, repository.Filter{})
	if err != nil || len(list) != 1 {
		t.Errorf("expected the local campaign in listings, got %d %v", len(list), err)
	}
}

func TestListOutageDoesNotOverwriteFavorites(t *testing.T) {
	ctx := context.Background()
	remote := &MockFlakyAdapter{MemoryAdapter: repository.NewMemoryAdapter()}
	local := repository.NewLocalAdapter(store.NewMemoryStore(1 << 20))
	s := newService(t, repository.NewFailover(remote, local, nil, time.Second, zerolog.Nop()))
	a := mustCreate(t, s, "u1")
	b := mustCreate(t, s, "u1")

	for _, id := range []string{a.ID, b.ID} {
		if _, err := s.ToggleFavorite(ctx, id, "u2"); err != nil {
			t.Fatalf("favorite %s: %v", id, err)
		}
	}

	remote.FailNextGet(model.CollectionUserLists)
	on, err := s.ToggleFavorite(ctx, a.ID, "u2")
	if !appErrors.IsBackendUnavailable(err) || on {
		t.Fatalf("expected the failed list read to surface, got on=%v err=%v", on, err)
	}

	l, err := s.Lists.Get(ctx, model.ListFavorites, "u2")
	if err != nil {
		t.Fatalf("get favorites: %v", err)
	}
	if len(l.CampaignIDs) != 2 || l.CampaignIDs[0] != b.ID || l.CampaignIDs[1] != a.ID {
		t.Errorf("expected favorites [%s %s] to survive, got %v", b.ID, a.ID, l.CampaignIDs)
	}
	if l.Origin != model.OriginRemote {
		t.Errorf("expected the remote list to stay authoritative, got origin %q", l.Origin)
	}

	// the next toggle sees the real list again
	on, err = s.ToggleFavorite(ctx, a.ID, "u2")
	if err != nil || on {
		t.Errorf("expected the favorite to be removed, got on=%v err=%v", on, err)
	}
}

func TestTrackViewWhileRemoteIsDown(t *testing.T) {
	ctx := context.Background()
	local := repository.NewLocalAdapter(store.NewMemoryStore(1 << 20))
	failover := repository.NewFailover(MockDownAdapter{}, local, nil, time.Second, zerolog.Nop())
	s := newService(t, failover)
	c := mustCreate(t, s, "u1")

	if _, err := s.TrackView(ctx, c.ID, "u2"); !appErrors.IsBackendUnavailable(err) {
		t.Fatalf("expected the unreadable list to surface the outage, got %v", err)
	}
	if _, err := local.Get(ctx, model.CollectionUserLists, model.UserListID(model.ListViewed, "u2")); !appErrors.IsNotFound(err) {
		t.Errorf("expected no list written from a failed read, got %v", err)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	s := newService(t, repository.NewMemoryAdapter())
	ctx := context.Background()

	noTitle := campaignInput()
	noTitle.Title = " "
	if _, err := s.CreateCampaign(ctx, noTitle, "u1"); !appErrors.IsValidation(err) {
		t.Errorf("expected validation error for missing title, got %v", err)
	}

	noMilestones := campaignInput()
	noMilestones.Milestones = nil
	if _, err := s.CreateCampaign(ctx, noMilestones, "u1"); !appErrors.IsValidation(err) {
		t.Errorf("expected validation error for missing milestones, got %v", err)
	}

	highMinimum := campaignInput()
	highMinimum.MinimumInvestment = highMinimum.TargetAmount + 1
	if _, err := s.CreateCampaign(ctx, highMinimum, "u1"); !appErrors.IsValidation(err) {
		t.Errorf("expected validation error for minimum above target, got %v", err)
	}

	if _, err := s.CreateCampaign(ctx, campaignInput(), ""); !appErrors.IsPermission(err) {
		t.Errorf("expected permission error without a creator, got %v", err)
	}
}

func TestAssetFailureAbortsWrite(t *testing.T) {
	ctx := context.Background()
	adapter := repository.NewMemoryAdapter()
	s := service.NewCampaignService(adapter, cache.New(), &MockOptimizer{
		fail: appErrors.NewAssetProcessing("cover.png", string(model.RoleMainImage), errors.New("corrupt")),
	}, nil, nil, zerolog.Nop())

	input := campaignInput()
	input.Images = []model.ImageAsset{model.PendingAsset("cover.png", model.RoleMainImage, "image/png", []byte("x"))}
	if _, err := s.CreateCampaign(ctx, input, "u1"); !appErrors.IsAssetProcessing(err) {
		t.Fatalf("expected asset processing error, got %v", err)
	}

	docs, _ := adapter.List(ctx, model.CollectionCampaigns, repository.Filter{})
	if len(docs) != 0 {
		t.Errorf("campaign was stored despite the failed asset")
	}
}

func TestUpdateCampaignMergesFields(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())
	c := mustCreate(t, s, "u1")

	updated, err := s.UpdateCampaign(ctx, c.ID, []byte(`{"title":"Solar kiosks 2","stage":"growth"}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Solar kiosks 2" || updated.Stage != "growth" || updated.Description != c.Description {
		t.Errorf("unexpected merge result %+v", updated)
	}
	if updated.ID != c.ID || !updated.CreatedAt.Equal(c.CreatedAt) {
		t.Errorf("identity changed on update")
	}

	if _, err := s.UpdateCampaign(ctx, c.ID, []byte(`{"currentAmount":1}`)); !appErrors.IsValidation(err) {
		t.Errorf("expected validation error for protected field, got %v", err)
	}
	if _, err := s.UpdateCampaign(ctx, "missing", []byte(`{}`)); !appErrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateCampaignWhileRemoteIsDown(t *testing.T) {
	ctx := context.Background()
	remote := &MockFlakyAdapter{MemoryAdapter: repository.NewMemoryAdapter()}
	local := repository.NewLocalAdapter(store.NewMemoryStore(1 << 20))
	failover := repository.NewFailover(remote, local, nil, time.Second, zerolog.Nop())
	s := newService(t, failover)
	c := mustCreate(t, s, "u1")
	if c.Origin != model.OriginRemote {
		t.Fatalf("expected a remote record, got %s", c.Origin)
	}

	remote.SetDown(true)
	updated, err := s.UpdateCampaign(ctx, c.ID, []byte(`{"title":"Written offline"}`))
	if err != nil {
		t.Fatalf("update while down: %v", err)
	}
	if updated.ID != c.ID || updated.Origin != model.OriginLocal {
		t.Errorf("expected a local copy under the same id, got %s %s", updated.ID, updated.Origin)
	}
	if updated.Description != c.Description || len(updated.Milestones) != 2 {
		t.Errorf("expected the rest of the record to be kept, got %+v", updated)
	}
	if _, err := local.Get(ctx, model.CollectionCampaigns, c.ID); err != nil {
		t.Errorf("expected the record in the local store, got %v", err)
	}

	remote.SetDown(false)
	got, err := s.GetCampaign(ctx, c.ID)
	if err != nil || got.Title != "Written offline" {
		t.Errorf("expected the local copy to win after recovery, got %v %v", got, err)
	}

	// a process that never saw the campaign has nothing to merge onto
	other := mustCreate(t, s, "u1")
	remote.SetDown(true)
	fresh := newService(t, failover)
	if _, err := fresh.UpdateCampaign(ctx, other.ID, []byte(`{"title":"x"}`)); !appErrors.IsBackendUnavailable(err) {
		t.Errorf("expected the outage to surface without a known copy, got %v", err)
	}
}

func TestCachedReadsAreNotSharedWithCallers(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())
	c := mustCreate(t, s, "u1")

	got, err := s.GetCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Milestones[0].Title = "changed by caller"
	got.Title = "changed by caller"

	again, err := s.GetCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.Milestones[0].Title != "Prototype" || again.Title != c.Title {
		t.Errorf("caller mutation leaked into the cache: %q %q", again.Title, again.Milestones[0].Title)
	}

	list, _ := s.ListCampaigns(ctx, repository.Filter{})
	list[0].Milestones[1].Title = "changed by caller"
	list, _ = s.ListCampaigns(ctx, repository.Filter{})
	if list[0].Milestones[1].Title != "Pilot" {
		t.Errorf("caller mutation leaked into the cached list: %q", list[0].Milestones[1].Title)
	}
}

func TestCreateDoesNotMutateInput(t *testing.T) {
	ctx := context.Background()
	input := campaignInput()
	input.Images = []model.ImageAsset{model.PendingAsset("cover.png", model.RoleMainImage, "image/png", []byte("raw"))}
	photo := model.PendingAsset("amina.png", model.RoleTeamPhoto, "image/png", []byte("raw"))
	input.Team = []model.TeamMember{{Name: "Amina", Role: "Founder", Photo: &photo}}

	unchanged := func(stage string) {
		t.Helper()
		img := input.Images[0]
		if img.Kind != model.AssetPending || img.ID != "" || string(img.Data) != "raw" {
			t.Errorf("%s: caller image changed: %+v", stage, img)
		}
		if p := input.Team[0].Photo; p.Kind != model.AssetPending || string(p.Data) != "raw" {
			t.Errorf("%s: caller team photo changed: %+v", stage, p)
		}
		if input.Milestones[0].ID != "" {
			t.Errorf("%s: caller milestone got id %q", stage, input.Milestones[0].ID)
		}
	}

	rejected := newService(t, MockDownAdapter{})
	if _, err := rejected.CreateCampaign(ctx, input, "u1"); !appErrors.IsBackendUnavailable(err) {
		t.Fatalf("expected the write to be rejected, got %v", err)
	}
	unchanged("rejected create")

	if _, err := rejected.CreateDraft(ctx, input, "u1"); err == nil {
		t.Fatalf("expected the draft write to be rejected")
	}
	unchanged("rejected draft")

	s := newService(t, repository.NewMemoryAdapter())
	created, err := s.CreateCampaign(ctx, input, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Images[0].Kind != model.AssetExternal {
		t.Errorf("expected the stored image to be processed, got %s", created.Images[0].Kind)
	}
	unchanged("successful create")
}

func TestClosedCampaignIsFinal(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())
	c := mustCreate(t, s, "u1")

	closed, err := s.CloseCampaign(ctx, c.ID)
	if err != nil || closed.Status != model.StatusClosed {
		t.Fatalf("close: %v %v", closed, err)
	}
	if _, err := s.UpdateCampaign(ctx, c.ID, []byte(`{"title":"again"}`)); !appErrors.IsValidation(err) {
		t.Errorf("expected closed campaign to reject edits, got %v", err)
	}
	if _, err := s.Contribute(ctx, c.ID, "u2", 500, nil); !appErrors.IsValidation(err) {
		t.Errorf("expected closed campaign to reject contributions, got %v", err)
	}
}

func TestTrackViewDeduplicatesAndBounds(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())

	var ids []string
	for i := 0; i < 25; i++ {
		ids = append(ids, mustCreate(t, s, "creator").ID)
	}

	for _, id := range []string{ids[0], ids[1], ids[0]} {
		if _, err := s.TrackView(ctx, id, "u1"); err != nil {
			t.Fatalf("track view: %v", err)
		}
	}
	viewed, err := s.ListViewed(ctx, "u1")
	if err != nil {
		t.Fatalf("list viewed: %v", err)
	}
	if len(viewed) != 2 || viewed[0].ID != ids[0] || viewed[1].ID != ids[1] {
		t.Errorf("expected [%s %s], got %v", ids[0], ids[1], campaignIDs(viewed))
	}

	for _, id := range ids {
		if _, err := s.TrackView(ctx, id, "u1"); err != nil {
			t.Fatalf("track view: %v", err)
		}
	}
	l, _ := s.Lists.Get(ctx, model.ListViewed, "u1")
	if len(l.CampaignIDs) != model.MaxListLength || l.CampaignIDs[0] != ids[24] {
		t.Errorf("expected %d entries headed by the last view, got %d", model.MaxListLength, len(l.CampaignIDs))
	}

	if _, err := s.TrackView(ctx, ids[3], ""); err != nil {
		t.Fatalf("anonymous view: %v", err)
	}
	anon, _ := s.Lists.Get(ctx, model.ListViewed, model.AnonymousUser)
	if len(anon.CampaignIDs) != 1 || anon.CampaignIDs[0] != ids[3] {
		t.Errorf("anonymous list should be separate, got %v", anon.CampaignIDs)
	}

	if _, err := s.TrackView(ctx, "missing", "u1"); !appErrors.IsNotFound(err) {
		t.Errorf("expected not found for unknown campaign, got %v", err)
	}
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())
	c := mustCreate(t, s, "u1")

	on, err := s.ToggleFavorite(ctx, c.ID, "u2")
	if err != nil || !on {
		t.Fatalf("first toggle: %v %v", on, err)
	}
	favorites, _ := s.ListFavorites(ctx, "u2")
	if len(favorites) != 1 {
		t.Errorf("expected one favorite, got %d", len(favorites))
	}

	off, err := s.ToggleFavorite(ctx, c.ID, "u2")
	if err != nil || off {
		t.Fatalf("second toggle: %v %v", off, err)
	}
	favorites, _ = s.ListFavorites(ctx, "u2")
	if len(favorites) != 0 {
		t.Errorf("expected no favorites, got %d", len(favorites))
	}

	if _, err := s.ToggleFavorite(ctx, c.ID, ""); !appErrors.IsPermission(err) {
		t.Errorf("expected permission error, got %v", err)
	}
}

func TestContribute(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())
	c := mustCreate(t, s, "u1")

	contribution, err := s.Contribute(ctx, c.ID, "u2", 2500, []string{c.Milestones[0].ID})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if contribution.Status != model.ContributionPending || contribution.ID == "" {
		t.Errorf("unexpected contribution %+v", contribution)
	}

	got, _ := s.GetCampaign(ctx, c.ID)
	if got.CurrentAmount != 2500 {
		t.Errorf("current amount = %v, want 2500", got.CurrentAmount)
	}
	funded, _ := s.ListFunded(ctx, "u2")
	if len(funded) != 1 || funded[0].ID != c.ID {
		t.Errorf("expected campaign in funded list, got %v", campaignIDs(funded))
	}

	history, _ := s.ListContributions(ctx, "u2")
	if len(history) != 1 {
		t.Fatalf("expected one contribution in history, got %d", len(history))
	}

	completed, err := s.CompleteContribution(ctx, contribution.ID)
	if err != nil || completed.Status != model.ContributionCompleted {
		t.Fatalf("complete: %v %v", completed, err)
	}
	if _, err := s.CompleteContribution(ctx, contribution.ID); !appErrors.IsValidation(err) {
		t.Errorf("expected second completion to fail, got %v", err)
	}

	if _, err := s.Contribute(ctx, c.ID, "u2", 0, nil); !appErrors.IsValidation(err) {
		t.Errorf("expected validation error for zero amount, got %v", err)
	}
	if _, err := s.Contribute(ctx, c.ID, "", 500, nil); !appErrors.IsPermission(err) {
		t.Errorf("expected permission error without user, got %v", err)
	}
	if _, err := s.Contribute(ctx, c.ID, "u2", 500, []string{"nope"}); !appErrors.IsValidation(err) {
		t.Errorf("expected validation error for unknown milestone, got %v", err)
	}
}

func TestFundedListIsNotBounded(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())

	total := model.MaxListLength + 5
	for i := 0; i < total; i++ {
		c := mustCreate(t, s, "u1")
		if _, err := s.Contribute(ctx, c.ID, "u2", 100, nil); err != nil {
			t.Fatalf("contribute %d: %v", i, err)
		}
	}

	funded, err := s.ListFunded(ctx, "u2")
	if err != nil {
		t.Fatalf("list funded: %v", err)
	}
	if len(funded) != total {
		t.Errorf("expected %d funded campaigns, got %d", total, len(funded))
	}
}

// MockFailingContributions refuses every write.
type MockFailingContributions struct {
	repository.ContributionRepositoryInterface
}

func (MockFailingContributions) Create(context.Context, *model.Contribution) error {
	return appErrors.NewCapacityExceeded(10, 10)
}

func TestContributeReportsPartialWrite(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())
	c := mustCreate(t, s, "u1")
	s.Contributions = MockFailingContributions{}

	_, err := s.Contribute(ctx, c.ID, "u2", 1000, nil)
	var partial *appErrors.PartialContributionError
	if !errors.As(err, &partial) {
		t.Fatalf("expected partial contribution error, got %v", err)
	}
	if partial.CampaignID != c.ID || !appErrors.IsCapacity(err) {
		t.Errorf("unexpected error %v", err)
	}

	got, _ := s.GetCampaign(ctx, c.ID)
	if got.CurrentAmount != 1000 {
		t.Errorf("expected the total to stay raised, got %v", got.CurrentAmount)
	}
}

func TestPublishDraft(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())

	input := campaignInput()
	input.Milestones = nil
	draft, err := s.CreateDraft(ctx, input, "u1")
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if draft.Status != model.StatusDraft {
		t.Errorf("expected draft status, got %s", draft.Status)
	}

	if _, err := s.PublishDraft(ctx, draft.ID); !appErrors.IsValidation(err) {
		t.Fatalf("expected publish without milestones to fail, got %v", err)
	}

	if _, err := s.UpdateDraft(ctx, draft.ID, []byte(`{"milestones":[{"title":"Build","amount":50000}]}`)); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	published, err := s.PublishDraft(ctx, draft.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != model.StatusActive || published.ID == draft.ID {
		t.Errorf("unexpected published campaign %+v", published)
	}
	if _, err := s.Drafts.GetByID(ctx, draft.ID); !appErrors.IsNotFound(err) {
		t.Errorf("draft should be removed after publish, got %v", err)
	}
	drafts, _ := s.ListDrafts(ctx, "u1")
	if len(drafts) != 0 {
		t.Errorf("expected no drafts left, got %d", len(drafts))
	}
	created, _ := s.ListCreated(ctx, "u1")
	if len(created) != 1 || created[0].ID != published.ID {
		t.Errorf("expected published campaign in created list, got %v", campaignIDs(created))
	}
}

func TestListCampaignsIsCached(t *testing.T) {
	ctx := context.Background()
	adapter := &MockCountingAdapter{MemoryAdapter: repository.NewMemoryAdapter()}
	s := newService(t, adapter)
	mustCreate(t, s, "u1")

	for i := 0; i < 3; i++ {
		if _, err := s.ListCampaigns(ctx, repository.Filter{}); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if n := adapter.Lists(); n != 1 {
		t.Errorf("expected one adapter call inside the window, got %d", n)
	}

	mustCreate(t, s, "u1")
	list, _ := s.ListCampaigns(ctx, repository.Filter{})
	if n := adapter.Lists(); n != 2 || len(list) != 2 {
		t.Errorf("expected a refetch after a mutation, got %d calls and %d campaigns", n, len(list))
	}
}

func TestExternalAssetIsUploadedAndAttached(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue()
	q.Logger = zerolog.Nop()
	s := service.NewCampaignService(repository.NewMemoryAdapter(), cache.New(), &MockOptimizer{}, nil, q, zerolog.Nop())
	worker := service.NewUploadWorker(media.NewDirUploader(t.TempDir(), "/media"), s, zerolog.Nop())
	if err := queue.StartUploadSubscriber(q, queue.TopicAssetUploads, worker.Handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	input := campaignInput()
	input.Images = []model.ImageAsset{model.PendingAsset("cover.png", model.RoleMainImage, "image/png", []byte("big"))}
	c, err := s.CreateCampaign(ctx, input, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !c.Images[0].UploadPending {
		t.Fatalf("expected the asset to wait for upload")
	}
	q.Wait()

	got, err := s.Campaigns.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	img := got.Images[0]
	if img.UploadPending || img.URL != "/media/campaigns/"+c.ID+"/asset-0.jpg" {
		t.Errorf("asset not attached: %+v", img)
	}
	if img.Data != nil {
		t.Errorf("raw data persisted")
	}
}

func campaignIDs(cs []model.Campaign) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestAdjustAmountAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newService(t, repository.NewMemoryAdapter())
	c := mustCreate(t, s, "u1")

	if _, err := s.Contribute(ctx, c.ID, "u2", 1000, nil); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	adjusted, err := s.AdjustAmount(ctx, c.ID, 400)
	if err != nil || adjusted.CurrentAmount != 400 {
		t.Fatalf("adjust: %v %v", adjusted, err)
	}
	if _, err := s.AdjustAmount(ctx, c.ID, -1); !appErrors.IsValidation(err) {
		t.Errorf("expected negative total to be rejected, got %v", err)
	}

	if err := s.DeleteCampaign(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetCampaign(ctx, c.ID); !appErrors.IsNotFound(err) {
		t.Errorf("expected deleted campaign to be gone, got %v", err)
	}
	if err := s.DeleteCampaign(ctx, c.ID); !appErrors.IsNotFound(err) {
		t.Errorf("expected second delete to report not found, got %v", err)
	}
}
