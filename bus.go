package trawl

import (
	"context"
	"time"
)

// Bus topics.
const (
	TopicCrawlRequests   = "crawl-requests"
	TopicIndexRequests   = "index-requests"
	TopicLinkDiscoveries = "link-discoveries"
	TopicCrawlDLQ        = "crawl-dlq"
)

// FetchJob instructs a fetch worker to crawl one URL. Keyed by domain so
// per-domain work lands on one partition.
type FetchJob struct {
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Depth     int       `json:"depth"`
	Priority  float64   `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

// IndexJob carries extracted page content to the indexer. Keyed by URL.
type IndexJob struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	OutboundLinks []string  `json:"outboundLinks"`
	Domain        string    `json:"domain"`
	Depth         int       `json:"depth"`
	CrawledAt     time.Time `json:"crawledAt"`
}

// DiscoveredURL is one outbound link found on a page.
type DiscoveredURL struct {
	URL    string `json:"url"`
	Anchor string `json:"anchor"`
}

// LinkDiscovery carries the outbound links of one fetched page. Keyed by
// source domain to co-locate per-domain dedup work. SourceURL attributes
// the resulting edges.
type LinkDiscovery struct {
	URLs         []DiscoveredURL `json:"urls"`
	SourceURL    string          `json:"sourceUrl"`
	SourceDomain string          `json:"sourceDomain"`
	SourceDepth  int             `json:"sourceDepth"`
}

// DeadLetter records a terminally failed fetch.
type DeadLetter struct {
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is one bus delivery awaiting acknowledgement.
type Message struct {
	// ID identifies the delivery for acknowledgement.
	ID string

	// Key is the partition key the message was published under.
	Key string

	// Payload is the JSON-encoded job.
	Payload []byte
}

// Handler processes one message. Returning nil acknowledges the message;
// returning an error leaves it unacknowledged for bus-level redelivery.
type Handler func(ctx context.Context, msg *Message) error

// Bus is the message transport between pipeline stages. Implementations
// provide at-least-once delivery, key-based partition routing with
// intra-partition FIFO, consumer groups, and explicit acknowledgement.
type Bus interface {
	// Publish appends a message to a topic under the given partition key.
	Publish(ctx context.Context, topic, key string, payload []byte) error

	// Consume joins the consumer group on a topic and calls handler for
	// each delivery until ctx is canceled. Messages are acknowledged only
	// after handler returns nil.
	Consume(ctx context.Context, topic, group, consumer string, handler Handler) error
}
