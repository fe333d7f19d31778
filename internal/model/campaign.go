// internal/model/campaign.go
package model

import "time"

// Collections known to the persistence layer.
const (
	CollectionCampaigns     = "campaigns"
	CollectionDrafts        = "drafts"
	CollectionContributions = "contributions"
	CollectionUserLists     = "user_lists"
)

type CampaignStatus string

const (
	StatusDraft  CampaignStatus = "draft"
	StatusActive CampaignStatus = "active"
	StatusClosed CampaignStatus = "closed"
)

// Origin names the backend that accepted the last write of a record.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

type Campaign struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Category          string         `json:"category"`
	Location          string         `json:"location"`
	Stage             string         `json:"stage,omitempty"`
	TargetAmount      float64        `json:"targetAmount"`
	MinimumInvestment float64        `json:"minimumInvestment"`
	CurrentAmount     float64        `json:"currentAmount"`
	Status            CampaignStatus `json:"status"`
	Creator           Creator        `json:"creator"`
	Milestones        []Milestone    `json:"milestones"`
	Team              []TeamMember   `json:"team"`
	Risks             []Risk         `json:"risks"`
	Images            []ImageAsset   `json:"images"`
	PitchAsset        *ImageAsset    `json:"pitchAsset,omitempty"`
	DocumentAsset     *DocumentAsset `json:"documentAsset,omitempty"`
	Origin            Origin         `json:"origin,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	EndDate           *time.Time     `json:"endDate,omitempty"`
}

type Creator struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Stats CreatorStats `json:"stats"`
}

type CreatorStats struct {
	CampaignsCreated int     `json:"campaignsCreated"`
	TotalRaised      float64 `json:"totalRaised"`
}

type Milestone struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Amount      float64     `json:"amount"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
	Image       *ImageAsset `json:"image,omitempty"`
}

type TeamMember struct {
	Name  string      `json:"name"`
	Role  string      `json:"role"`
	Bio   string      `json:"bio,omitempty"`
	Photo *ImageAsset `json:"photo,omitempty"`
}

type Risk struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// DocumentAsset is a non-image attachment such as a pitch deck PDF.
type DocumentAsset struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
}

// CanTransition reports whether a campaign may move from s to next.
// Nothing leaves closed and drafts only become active through publish.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusDraft:
		return next == StatusActive
	case StatusActive:
		return next == StatusClosed
	default:
		return false
	}
}

func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusClosed:
		return true
	}
	return false
}

// Assets returns pointers to every image asset carried by the campaign,
// in a stable order: images, pitch, milestone images, team photos.
func (c *Campaign) Assets() []*ImageAsset {
	var out []*ImageAsset
	for i := range c.Images {
		out = append(out, &c.Images[i])
	}
	if c.PitchAsset != nil {
		out = append(out, c.PitchAsset)
	}
	for i := range c.Milestones {
		if c.Milestones[i].Image != nil {
			out = append(out, c.Milestones[i].Image)
		}
	}
	for i := range c.Team {
		if c.Team[i].Photo != nil {
			out = append(out, c.Team[i].Photo)
		}
	}
	return out
}

// Clone returns a copy of c that shares no slices or assets with it.
func (c Campaign) Clone() Campaign {
	out := c
	out.Milestones = append([]Milestone(nil), c.Milestones...)
	for i := range out.Milestones {
		out.Milestones[i].Image = cloneAsset(out.Milestones[i].Image)
		if d := out.Milestones[i].DueDate; d != nil {
			due := *d
			out.Milestones[i].DueDate = &due
		}
	}
	out.Team = append([]TeamMember(nil), c.Team...)
	for i := range out.Team {
		out.Team[i].Photo = cloneAsset(out.Team[i].Photo)
	}
	out.Risks = append([]Risk(nil), c.Risks...)
	out.Images = append([]ImageAsset(nil), c.Images...)
	out.PitchAsset = cloneAsset(c.PitchAsset)
	if c.DocumentAsset != nil {
		doc := *c.DocumentAsset
		out.DocumentAsset = &doc
	}
	if c.EndDate != nil {
		end := *c.EndDate
		out.EndDate = &end
	}
	return out
}

func cloneAsset(a *ImageAsset) *ImageAsset {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
