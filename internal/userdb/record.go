package userdb

import (
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one chat message as persisted with an inquiry.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Inquiry is a saved consultation. The articleId/articleTitle field names are
// kept for every entity kind so older records still decode.
type Inquiry struct {
	ID          string       `json:"id"`
	Date        string       `json:"date"`
	Kind        content.Kind `json:"kind,omitempty"`
	EntityID    string       `json:"articleId"`
	EntityTitle string       `json:"articleTitle"`
	Summary     string       `json:"summary"`
	ChatHistory []Turn       `json:"chatHistory"`
}

// Record is everything stored for one user under a single key.
type Record struct {
	Username       string           `json:"username"`
	Profile        *profile.Profile `json:"profile"`
	SavedInquiries []Inquiry        `json:"savedInquiries"`
	Revision       int64            `json:"revision"`
}

func newRecord(username string) *Record {
	return &Record{Username: username, SavedInquiries: []Inquiry{}}
}
