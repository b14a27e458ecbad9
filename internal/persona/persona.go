// Package persona provides cached, structured access to the bot's persona
// stored as key/value pairs in SQLite. The persona is injected into every
// generation prompt so the bot posts and replies in a consistent voice.
package persona

// Persona is the structured view of the bot's character.
type Persona struct {
	Personality string   // who the bot is, free text
	ReplyStyle  string   // e.g. "平淡，简短"
	PostStyle   string   // e.g. "生活化，偶尔感慨"
	Interests   []string
	Taboos      []string // topics the bot must not touch
}
