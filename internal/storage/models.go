package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Post is one feed published by the bot, logged for prompt history.
type Post struct {
	ID        string
	Topic     string
	Content   string
	Model     string
	CreatedAt time.Time
}

// DiaryEntry is a generated daily diary. Date is "YYYY-MM-DD" and unique.
type DiaryEntry struct {
	ID        string
	Date      string
	Content   string
	WordCount int
	Published bool
	CreatedAt time.Time
}
