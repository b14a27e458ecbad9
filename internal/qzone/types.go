package qzone

// Comment is a single comment under a feed.
type Comment struct {
	ID          string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	AuthorName  string `json:"author_name"`
	Content     string `json:"content"`
	CreatedTime string `json:"created_time"`
}

// Feed is one entry in the zone timeline, with its comments inlined.
type Feed struct {
	ID          string    `json:"feed_id"`
	OwnerID     string    `json:"owner_id"`
	OwnerName   string    `json:"owner_name"`
	Content     string    `json:"content"`
	Forwarded   string    `json:"forwarded_content,omitempty"`
	Images      []string  `json:"images,omitempty"`
	CreatedTime string    `json:"created_time"`
	Comments    []Comment `json:"comments,omitempty"`
}
