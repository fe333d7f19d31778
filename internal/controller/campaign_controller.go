// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	zlog "github.com/rs/zerolog/log"

	appErrors "github.com/unclebandit/darb-backend/internal/errors"
	"github.com/unclebandit/darb-backend/internal/model"
	"github.com/unclebandit/darb-backend/internal/repository"
	"github.com/unclebandit/darb-backend/internal/service"
)

// MaxBodyBytes bounds request bodies, which may carry base64 image files.
const MaxBodyBytes = 32 << 20

type CampaignController struct {
	CampaignService *service.CampaignService
}

// Routes registers the campaign, draft, contribution and per-user routes.
func (c *CampaignController) Routes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", c.ListCampaigns)
		r.Post("/", c.CreateCampaign)
		r.Get("/{id}", c.GetCampaign)
		r.Patch("/{id}", c.UpdateCampaign)
		r.Delete("/{id}", c.DeleteCampaign)
		r.Post("/{id}/close", c.CloseCampaign)
		r.Post("/{id}/views", c.TrackView)
		r.Post("/{id}/favorite", c.ToggleFavorite)
		r.Post("/{id}/contributions", c.Contribute)
	})
	r.Post("/contributions/{id}/complete", c.CompleteContribution)

	r.Route("/drafts", func(r chi.Router) {
		r.Get("/", c.ListDrafts)
		r.Post("/", c.CreateDraft)
		r.Patch("/{id}", c.UpdateDraft)
		r.Delete("/{id}", c.DeleteDraft)
		r.Post("/{id}/publish", c.PublishDraft)
	})

	r.Route("/me", func(r chi.Router) {
		r.Get("/viewed", c.ListViewed)
		r.Get("/favorites", c.ListFavorites)
		r.Get("/created", c.ListCreated)
		r.Get("/funded", c.ListFunded)
		r.Get("/contributions", c.ListContributions)
	})
}

// filterFromQuery turns every query parameter into an equality condition.
func filterFromQuery(r *http.Request) (repository.Filter, error) {
	var filter repository.Filter
	for field, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		filter = filter.And(field, values[0])
	}
	if err := filter.Validate(); err != nil {
		return filter, appErrors.NewValidation("filter", err.Error())
	}
	return filter, nil
}

func readPatch(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return nil, appErrors.NewValidation("body", err.Error())
	}
	return body, nil
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	campaigns, err := c.CampaignService.ListCampaigns(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": campaigns})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body model.Campaign
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	zlog.Ctx(r.Context()).Info().Str("campaign", campaign.ID).Msg("📥 campaign created")
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	patch, err := readPatch(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.DeleteCampaign(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) CloseCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.CloseCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) TrackView(w http.ResponseWriter, r *http.Request) {
	list, err := c.CampaignService.TrackView(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (c *CampaignController) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	favorite, err := c.CampaignService.ToggleFavorite(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

func (c *CampaignController) Contribute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount       float64  `json:"amount"`
		MilestoneIDs []string `json:"milestoneIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	contribution, err := c.CampaignService.Contribute(r.Context(), chi.URLParam(r, "id"), userID(r), body.Amount, body.MilestoneIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contribution)
}

func (c *CampaignController) CompleteContribution(w http.ResponseWriter, r *http.Request) {
	contribution, err := c.CampaignService.CompleteContribution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contribution)
}

func (c *CampaignController) ListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := c.CampaignService.ListDrafts(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": drafts})
}

func (c *CampaignController) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var body model.Campaign
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := c.CampaignService.CreateDraft(r.Context(), body, userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (c *CampaignController) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	patch, err := readPatch(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := c.CampaignService.UpdateDraft(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (c *CampaignController) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.DeleteDraft(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) PublishDraft(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.PublishDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListViewed(w http.ResponseWriter, r *http.Request) {
	c.writeList(w, r, c.CampaignService.ListViewed)
}

func (c *CampaignController) ListFavorites(w http.ResponseWriter, r *http.Request) {
	c.writeList(w, r, c.CampaignService.ListFavorites)
}

func (c *CampaignController) ListCreated(w http.ResponseWriter, r *http.Request) {
	c.writeList(w, r, c.CampaignService.ListCreated)
}

func (c *CampaignController) ListFunded(w http.ResponseWriter, r *http.Request) {
	c.writeList(w, r, c.CampaignService.ListFunded)
}

func (c *CampaignController) ListContributions(w http.ResponseWriter, r *http.Request) {
	contributions, err := c.CampaignService.ListContributions(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": contributions})
}

func (c *CampaignController) writeList(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, userID string) ([]model.Campaign, error)) {
	campaigns, err := list(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": campaigns})
}
