package models

import "time"

type Comment struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is one persisted audit event.
type Activity struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	FileID    string    `json:"file_id"`
	Verb      string    `json:"verb"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
