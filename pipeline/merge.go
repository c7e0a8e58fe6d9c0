package pipeline

import (
	"strings"

	"daangn-crawler/models"
)

// Merge overlays a detail onto its summary. Detail title, location and
// category win when present; price, time and status always come from the
// summary. A nil detail yields the summary alone.
func Merge(s models.ListingSummary, d *models.ListingDetail) models.MergedRecord {
	r := models.MergedRecord{
		URL:      s.URL,
		Title:    s.Title,
		Price:    s.Price,
		Location: s.Location,
		Time:     s.Time,
		Status:   s.Status,
		Category: s.Category,
	}
	if d == nil {
		return r
	}

	if d.Title != "" {
		r.Title = d.Title
	}
	if d.Location != "" {
		r.Location = d.Location
	}
	if d.Category != nil && strings.TrimSpace(*d.Category) != "" {
		r.Category = d.Category
	}

	r.SellerNickname = d.SellerNickname
	r.Description = d.Description
	r.ImageCount = d.ImageCount
	r.ChatCount = d.ChatCount
	r.InterestCount = d.InterestCount
	r.ViewCount = d.ViewCount
	r.MannerTemperature = d.MannerTemperature
	return r
}
