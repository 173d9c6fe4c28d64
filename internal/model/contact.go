package model

import "time"

// Contact is a promoted identity owned by a user. The ingestion pipeline only
// reads contacts.
type Contact struct {
	ID        string    `json:"contact_id"`
	StagingID string    `json:"staging_id"`
	UserID    string    `json:"contacts_user_id"`
	Email     string    `json:"contact_email"`
	FirstName string    `json:"contact_first_name"`
	LastName  string    `json:"contact_last_name"`
	Company   string    `json:"contact_company"`
	CreatedAt time.Time `json:"contact_created_at"`
}
