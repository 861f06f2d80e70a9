package models

// Directory types are static configuration loaded once per process from the
// secret store. They are read-only to the engine.

// GroupType distinguishes page-only departments from those that also run a
// peer text channel
type GroupType string

const (
	GroupTypePage GroupType = "page"
	GroupTypeText GroupType = "text"
)

// IdentityType classifies a sending identity's channel behavior
type IdentityType string

const (
	IdentityTypePage  IdentityType = "page"
	IdentityTypeChat  IdentityType = "chat"
	IdentityTypeAlert IdentityType = "alert"
)

// Department is static department configuration keyed by department ID
type Department struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	ShortName         string    `json:"short_name"`
	Type              GroupType `json:"type"`
	DefaultTalkgroups []int64   `json:"default_talkgroups"`
	PageIdentity      string    `json:"page_identity"`
	TextIdentity      string    `json:"text_identity"`
}

// Talkgroup is static paging-talkgroup configuration keyed by talkgroup ID
type Talkgroup struct {
	ID         int64  `json:"id"`
	PartyName  string `json:"party_name"`
	Service    string `json:"service"`
	LinkPreset string `json:"link_preset"`
}

// SendingIdentity is a logical named outbound channel resolving to a concrete
// number and the sub-account credentials it bills to
type SendingIdentity struct {
	Name       string       `json:"name"`
	Number     string       `json:"number"`
	AccountSID string       `json:"account_sid"`
	AuthToken  string       `json:"auth_token"`
	Type       IdentityType `json:"type"`
	Department string       `json:"department,omitempty"`
}

// DirectoryBlob is the shape of the single secret-store JSON document
type DirectoryBlob struct {
	Departments map[string]Department      `json:"departments"`
	Talkgroups  map[string]Talkgroup       `json:"talkgroups"`
	Identities  map[string]SendingIdentity `json:"identities"`
}
