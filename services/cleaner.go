package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"daangn-crawler/models"
	"daangn-crawler/utils"
)

// priceRegexp captures the first run of digits once separators are removed
var priceRegexp = regexp.MustCompile(`\d+`)

// freeLabel is how a give-away listing shows its price.
const freeLabel = "나눔"

// ParsePrice converts list price text such as "35,000원" into won. A give-away
// listing is worth 0. The second result is false when no price can be read.
func ParsePrice(raw string) (int, bool) {
	s := normaliseText(raw)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, freeLabel) {
		return 0, true
	}

	cleaned := strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), "원", "")
	match := priceRegexp.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Screen drops summaries by trade status and by locally parsed price. It runs
// before the category pre-filter so screened cards never reach a detail page.
type Screen struct {
	SoldOnly bool
	// MinPrice and MaxPrice are inclusive; nil means unbounded. When either
	// is set, cards whose price cannot be parsed are dropped.
	MinPrice *int
	MaxPrice *int

	logger *utils.Logger
}

// NewScreen creates a Screen.
func NewScreen(soldOnly bool, minPrice, maxPrice *int, logger *utils.Logger) *Screen {
	return &Screen{SoldOnly: soldOnly, MinPrice: minPrice, MaxPrice: maxPrice, logger: logger}
}

// Active reports whether the screen can drop anything.
func (s *Screen) Active() bool {
	return s.SoldOnly || s.MinPrice != nil || s.MaxPrice != nil
}

// Screen returns the summaries that pass, in their original order.
func (s *Screen) Screen(summaries []models.ListingSummary) ([]models.ListingSummary, int) {
	if !s.Active() {
		return summaries, 0
	}

	kept := make([]models.ListingSummary, 0, len(summaries))
	for _, sum := range summaries {
		if s.SoldOnly && sum.Status != models.StatusCompleted {
			continue
		}
		if !s.priceOK(sum.Price) {
			s.logger.Debug("[screen] Price %q out of range: %s", sum.Price, sum.URL)
			continue
		}
		kept = append(kept, sum)
	}
	return kept, len(summaries) - len(kept)
}

func (s *Screen) priceOK(raw string) bool {
	if s.MinPrice == nil && s.MaxPrice == nil {
		return true
	}
	price, ok := ParsePrice(raw)
	if !ok {
		return false
	}
	if s.MinPrice != nil && price < *s.MinPrice {
		return false
	}
	if s.MaxPrice != nil && price > *s.MaxPrice {
		return false
	}
	return true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
