package models

import "time"

type Company struct {
	ID             int       `json:"id" db:"id"`
	OrganizationID int       `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Domain         string    `json:"domain,omitempty" db:"domain"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type Contact struct {
	ID             int       `json:"id" db:"id"`
	OrganizationID int       `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email,omitempty" db:"email"`
	CompanyID      *int      `json:"company_id,omitempty" db:"company_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Deal stages. Transitions are plain updates, there is no workflow engine.
const (
	StageLead      = "lead"
	StageQualified = "qualified"
	StageProposal  = "proposal"
	StageWon       = "won"
	StageLost      = "lost"
)

// DealStages lists valid stages in pipeline order.
var DealStages = []string{StageLead, StageQualified, StageProposal, StageWon, StageLost}

// ValidStage reports whether s is a known deal stage.
func ValidStage(s string) bool {
	for _, stage := range DealStages {
		if stage == s {
			return true
		}
	}
	return false
}

type Deal struct {
	ID             int       `json:"id" db:"id"`
	OrganizationID int       `json:"organization_id" db:"organization_id"`
	Title          string    `json:"title" db:"title"`
	AmountCents    int64     `json:"amount_cents" db:"amount_cents"`
	Stage          string    `json:"stage" db:"stage"`
	CompanyID      *int      `json:"company_id,omitempty" db:"company_id"`
	ContactID      *int      `json:"contact_id,omitempty" db:"contact_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type Tag struct {
	ID             int       `json:"id" db:"id"`
	OrganizationID int       `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Color          string    `json:"color,omitempty" db:"color"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type Task struct {
	ID             int        `json:"id" db:"id"`
	OrganizationID int        `json:"organization_id" db:"organization_id"`
	Title          string     `json:"title" db:"title"`
	DueAt          *time.Time `json:"due_at,omitempty" db:"due_at"`
	Done           bool       `json:"done" db:"done"`
	DealID         *int       `json:"deal_id,omitempty" db:"deal_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
