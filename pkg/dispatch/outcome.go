package dispatch

import "net/http"

// Kind is the result class of handing an event to the pipeline
type Kind string

const (
	// Delivered means the collector acknowledged the event with a 2xx
	Delivered Kind = "delivered"
	// Rejected means the collector refused the event permanently
	Rejected Kind = "rejected"
	// TransientFailure means the send may succeed later
	TransientFailure Kind = "transient_failure"
	// Duplicate means the event was already delivered; nothing was sent
	Duplicate Kind = "duplicate"
	// Skipped means consent is absent; nothing was sent
	Skipped Kind = "skipped"
	// Invalid means the event failed validation; nothing was sent
	Invalid Kind = "invalid"
	// Queued means a transient failure was parked in the offline queue
	Queued Kind = "queued"
	// Dropped means the event was discarded after exhausting its retries
	Dropped Kind = "dropped"
	// Accepted means the event was handed to the background sender
	Accepted Kind = "accepted"
)

// Outcome describes what happened to one event
type Outcome struct {
	Kind       Kind   `json:"kind"`
	Reason     string `json:"reason,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	// Attempted is true when a request reached the network
	Attempted bool `json:"attempted"`
}

// Classify maps an HTTP status code to an outcome kind: 2xx is delivered,
// 429 and 5xx are transient, any other 4xx is rejected. Anything else
// (1xx, unfollowed 3xx) is treated as transient.
func Classify(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return Delivered
	case status == http.StatusTooManyRequests:
		return TransientFailure
	case status >= 400 && status < 500:
		return Rejected
	default:
		return TransientFailure
	}
}
