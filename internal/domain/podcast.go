package domain

// Podcast is a show whose episodes are ingested from an RSS feed.
type Podcast struct {
	ID      int64  `json:"id"       db:"id"`
	Name    string `json:"name"     db:"name"`
	FeedURL string `json:"feed_url" db:"feed_url"`
}
