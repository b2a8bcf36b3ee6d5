package model

import "time"

// ServerStatus is the remote server's self-reported status document, fetched
// from its status endpoint before and during the login flow.
type ServerStatus struct {
	Installed       bool   `json:"installed"`
	Maintenance     bool   `json:"maintenance"`
	NeedsDBUpgrade  bool   `json:"needsDbUpgrade"`
	Version         string `json:"version"`
	VersionString   string `json:"versionstring"`
	Edition         string `json:"edition"`
	ProductName     string `json:"productname"`
	ExtendedSupport bool   `json:"extendedSupport"`

	FetchedAt time.Time `json:"-"`
}

// Reachable reports whether the server is in a state that allows a login
// attempt: installed and not in maintenance or mid-upgrade.
func (s ServerStatus) Reachable() bool {
	return s.Installed && !s.Maintenance && !s.NeedsDBUpgrade
}
