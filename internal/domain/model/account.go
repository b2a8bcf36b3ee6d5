package model

import "time"

// Account represents a signed-in account stored on the device. Token holds
// the app password issued by the login flow; the adapter layer encrypts it
// at rest.
type Account struct {
	ID                   int64
	Username             string
	ServerURL            string
	Token                string
	Current              bool
	ScheduledForDeletion bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
