package models

import "time"

// ListingStatus is the trade state shown on a list card.
type ListingStatus string

const (
	StatusSelling   ListingStatus = "selling"
	StatusReserved  ListingStatus = "reserved"
	StatusCompleted ListingStatus = "completed"
)

// ListingSummary holds one card read from the rendered search results.
// It is created once during list expansion and never mutated afterwards.
type ListingSummary struct {
	URL      string
	Title    string
	Price    string
	Location string
	Time     string
	Status   ListingStatus

	// Category is nil when the card does not show one.
	Category *string
}

// ListingDetail holds the fields only available on an item's detail page.
// Numeric fields stay zero when that part of the page could not be read.
type ListingDetail struct {
	Title             string
	Description       string
	Category          *string
	SellerNickname    string
	Location          string
	ChatCount         int
	InterestCount     int
	ViewCount         int
	MannerTemperature float64
	ImageCount        int
}

// Usable reports whether the detail page yielded any content worth merging.
func (d *ListingDetail) Usable() bool {
	if d == nil {
		return false
	}
	return d.Title != "" || d.Category != nil || d.Description != ""
}

// MergedRecord is one output row: a summary overlaid with its detail.
type MergedRecord struct {
	URL               string
	Title             string
	Price             string
	Location          string
	Time              string
	Status            ListingStatus
	Category          *string
	SellerNickname    string
	Description       string
	ImageCount        int
	ChatCount         int
	InterestCount     int
	ViewCount         int
	MannerTemperature float64
}

// CategoryText returns the category or "" when unresolved.
func (r *MergedRecord) CategoryText() string {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}

// RunStats counts what happened to listings at every stage of one run.
type RunStats struct {
	RunID      string
	StartedAt  time.Time
	Elapsed    time.Duration
	StopReason string

	Rendered       int // cards on the list page when expansion stopped
	Collected      int // unique summaries extracted
	Screened       int // dropped by the status/price screen
	PreFiltered    int // dropped by the list-level category check
	Admitted       int // sent to the detail stage
	DetailOK       int
	DetailFailed   int
	Cancelled      int // never fetched because the run was interrupted
	PostRejected   int // detail category known but not allowed
	PostUnresolved int // no category even after detail
	Written        int
}

// InsightReport holds the computed analytics over the final record set.
type InsightReport struct {
	Stats              RunStats
	PricedRecords      int
	AveragePrice       float64
	MinPrice           int
	MaxPrice           int
	MostExpensive      *MergedRecord
	RecordsByCategory  map[string]int
	RecordsByLocation  map[string]int
	AverageTemperature float64
}
