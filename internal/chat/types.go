package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	DefaultPlatform     = "ios"
	DefaultHistoryLimit = 50
)

type DeviceInfo struct {
	Model      string `json:"model"`
	OSVersion  string `json:"os_version"`
	AppVersion string `json:"app_version"`
}

type Source struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Excerpt string `json:"excerpt" yaml:"excerpt"`
}

// Message is one immutable turn of a conversation. Device is only set on
// user messages.
type Message struct {
	ID        string
	Text      string
	Role      Role
	Timestamp time.Time
	Sources   []Source
	Device    *DeviceInfo
}

type PendingReply struct {
	Text      string
	CreatedAt time.Time
	Read      bool
}

// Session carries conversation metadata. Messages are read through
// Store.History.
type Session struct {
	ID             string
	Platform       string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

type SendRequest struct {
	SessionID string
	Text      string
	Timestamp time.Time
	Platform  string
	Device    *DeviceInfo
}

type Metadata struct {
	TokensUsed int
	Model      string
	Confidence float64
}

type Reply struct {
	SessionID string
	MessageID string
	Answer    string
	Language  string
	Sources   []Source
	Timestamp time.Time
	Metadata  Metadata
}
