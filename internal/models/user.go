package models

import "time"

type User struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	Password    string    `json:"-" db:"password"`
	ActiveOrgID *int      `json:"active_org_id,omitempty" db:"active_org_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
