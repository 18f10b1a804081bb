package builds

import "time"

// Registration records a CI-produced artifact for a (service, version)
// pair. Registration must match an unexpired upload capability.
type Registration struct {
	ID          string
	Service     string
	Version     string
	ArtifactRef string // URI, scheme + opaque part
	SHA256      string
	SizeBytes   int64
	ContentType string
	GitSHA      string
	GitBranch   string
	CIProvider  string
	CIRunID     string
	CommitURL   string
	RunURL      string
	Publisher   string // matched CI publisher name, empty when unattributed
	CreatedAt   time.Time
}

// UploadCapability is a short-lived token binding the artifact metadata a
// subsequent registration must present.
type UploadCapability struct {
	Token       string
	Service     string
	Version     string
	SHA256      string
	SizeBytes   int64
	ContentType string
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
}

// CapabilityTTL is how long an upload capability stays redeemable.
const CapabilityTTL = 15 * time.Minute

// Matches reports whether a registration presents exactly the metadata
// this capability was issued for.
func (c UploadCapability) Matches(r Registration) bool {
	return c.Service == r.Service &&
		c.Version == r.Version &&
		c.SHA256 == r.SHA256 &&
		c.SizeBytes == r.SizeBytes &&
		c.ContentType == r.ContentType
}

// Live reports whether the capability is unexpired and unconsumed at now.
func (c UploadCapability) Live(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt)
}

// Publisher is a named rule set that attributes a build registration to a
// trusted CI pipeline. Empty constraint lists always match.
type Publisher struct {
	Name            string
	Provider        string
	Issuers         []string
	Audiences       []string
	AuthorizedParty []string
	Subjects        []string
	SubjectPrefixes []string
	Emails          []string
}
