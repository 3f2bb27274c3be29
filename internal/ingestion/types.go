// Package ingestion defines the page event schema shared by the crawler,
// the indexer's Kafka consumer and the page submission endpoint.
package ingestion

import "time"

// PageEvent is one crawled page: its URL, the number of inbound references
// the crawler counted, and the page's normalised word sequence.
type PageEvent struct {
	URL          string    `json:"url"`
	Connectivity int       `json:"connectivity"`
	Words        []string  `json:"words"`
	CrawledAt    time.Time `json:"crawled_at"`
}

// SubmitResponse is returned after a page event is accepted for indexing.
type SubmitResponse struct {
	URL    string `json:"url"`
	Status string `json:"status"`
	Words  int    `json:"words"`
}
