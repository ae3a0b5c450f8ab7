package audit

import "time"

// TimelineFilters narrows the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit_logs entry.
type TimelineRow struct {
	At       time.Time `json:"at" csv:"at"`
	Actor    string    `json:"actor" csv:"actor"`
	Action   string    `json:"action" csv:"action"`
	Entity   string    `json:"entity" csv:"entity"`
	EntityID string    `json:"entity_id" csv:"entity_id"`
	Meta     string    `json:"meta" csv:"meta"`
}

// PagingInfo describes the page returned by Timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result is a page of the timeline.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
