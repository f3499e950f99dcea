package event

import (
	"time"
)

// Type classifies an event
type Type string

const (
	TypePageView    Type = "pageview"
	TypeClick       Type = "click"
	TypeConversion  Type = "conversion"
	TypeError       Type = "error"
	TypeEngagement  Type = "engagement"
	TypePerformance Type = "performance"
	TypeCustom      Type = "custom"
)

// PageViewName is the event name that implies TypePageView
const PageViewName = "page_view"

// TimestampLayout is ISO-8601 with millisecond precision
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var knownTypes = map[Type]struct{}{
	TypePageView:    {},
	TypeClick:       {},
	TypeConversion:  {},
	TypeError:       {},
	TypeEngagement:  {},
	TypePerformance: {},
	TypeCustom:      {},
}

// Valid reports whether t is a known event type
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Types returns every known event type
func Types() []Type {
	return []Type{TypePageView, TypeClick, TypeConversion, TypeError, TypeEngagement, TypePerformance, TypeCustom}
}

// RawEvent is what a caller asks to track
type RawEvent struct {
	Name     string                 `json:"eventName"`
	Type     Type                   `json:"eventType,omitempty"`
	Page     string                 `json:"page,omitempty"`
	URL      string                 `json:"url,omitempty"`
	Referrer string                 `json:"referrer,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ClientContext describes the client that produced the event
type ClientContext struct {
	UserAgent string `json:"userAgent,omitempty"`
	Screen    string `json:"screen,omitempty"`
	Language  string `json:"language,omitempty"`
}

// IsZero reports whether no field is set
func (c ClientContext) IsZero() bool {
	return c == ClientContext{}
}

// Event is a normalized event, ready for the wire. It is never modified after
// normalization; retries resend the same value.
type Event struct {
	ID          string                 `json:"eventId"`
	Name        string                 `json:"eventName"`
	Type        Type                   `json:"eventType"`
	SessionID   string                 `json:"sessionId"`
	Page        string                 `json:"page,omitempty"`
	URL         string                 `json:"url,omitempty"`
	Referrer    string                 `json:"referrer,omitempty"`
	Timestamp   string                 `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata"`
	UTMSource   string                 `json:"utm_source,omitempty"`
	UTMMedium   string                 `json:"utm_medium,omitempty"`
	UTMCampaign string                 `json:"utm_campaign,omitempty"`
	UTMContent  string                 `json:"utm_content,omitempty"`
	UTMTerm     string                 `json:"utm_term,omitempty"`
	Context     *ClientContext         `json:"context,omitempty"`
}

// Endpoint returns the collector path for the event
func (e Event) Endpoint() string {
	if e.Type == TypePageView {
		return "/pageview"
	}
	return "/track"
}

// Time parses the event timestamp
func (e Event) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, e.Timestamp)
}
