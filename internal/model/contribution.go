// internal/model/contribution.go
package model

import "time"

type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "pending"
	ContributionCompleted ContributionStatus = "completed"
)

type Contribution struct {
	ID           string             `json:"id"`
	CampaignID   string             `json:"campaignId"`
	InvestorID   string             `json:"investorId"`
	Amount       float64            `json:"amount"`
	MilestoneIDs []string           `json:"milestoneIds"`
	Status       ContributionStatus `json:"status"`
	Origin       Origin             `json:"origin,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}
