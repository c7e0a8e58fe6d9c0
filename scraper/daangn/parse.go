package daangn

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"daangn-crawler/models"
)

const (
	// ItemSelector matches one listing card on the search results page.
	ItemSelector = `a[data-gtm='search_article']`
	// MoreButtonSelector matches the "load more" button under the results.
	MoreButtonSelector = `div[data-gtm='search_show_more_articles'] button`
	// DetailReadySelector appears once a detail page has rendered its article.
	DetailReadySelector = `#main-content article`
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	temperatureRe = regexp.MustCompile(`(\d{1,3}(?:\.\d)?)\s*°C`)
	chatRe        = regexp.MustCompile(`채팅\s*([\d,]+)`)
	interestRe    = regexp.MustCompile(`관심\s*([\d,]+)`)
	viewRe        = regexp.MustCompile(`조회\s*([\d,]+)`)
)

// ParseListHTML reads every listing card in a rendered search results page.
// Cards without a title are skipped; relative links are resolved against base.
func ParseListHTML(html, base string) ([]models.ListingSummary, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("daangn: parse base url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("daangn: parse list html: %w", err)
	}

	var out []models.ListingSummary
	doc.Find(ItemSelector).Each(func(_ int, card *goquery.Selection) {
		if s, ok := parseCard(card, baseURL); ok {
			out = append(out, s)
		}
	})
	return out, nil
}

func parseCard(card *goquery.Selection, base *url.URL) (models.ListingSummary, bool) {
	wrapper := card.ChildrenFiltered("div").First()
	areas := wrapper.ChildrenFiltered("div")
	if areas.Length() < 2 {
		return models.ListingSummary{}, false
	}
	thumbnail, text := areas.Eq(0), areas.Eq(1)

	blocks := text.ChildrenFiltered("div")
	if blocks.Length() < 2 {
		return models.ListingSummary{}, false
	}
	info, meta := blocks.Eq(0), blocks.Eq(1)

	spans := info.Find("span")
	s := models.ListingSummary{
		Title:    cleanText(spans.Eq(0).Text()),
		Price:    cleanText(spans.Eq(1).Text()),
		Location: cleanText(meta.Find("span span").First().Text()),
		Time:     cleanText(meta.Find("time").First().Text()),
		Status:   parseStatus(thumbnail.Find("span").First().Text()),
	}
	if s.Title == "" {
		return models.ListingSummary{}, false
	}

	if href := strings.TrimSpace(card.AttrOr("href", "")); href != "" {
		if ref, err := url.Parse(href); err == nil {
			s.URL = base.ResolveReference(ref).String()
		}
	}
	if cat := cleanText(card.Find(`a[href*="category_id"]`).First().Text()); cat != "" {
		s.Category = &cat
	}
	return s, true
}

func parseStatus(label string) models.ListingStatus {
	switch cleanText(label) {
	case "예약중":
		return models.StatusReserved
	case "거래완료", "판매완료":
		return models.StatusCompleted
	default:
		return models.StatusSelling
	}
}

// ParseDetailHTML reads a rendered detail page. Every field is best effort;
// the caller decides whether the result is usable.
func ParseDetailHTML(html string) (*models.ListingDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("daangn: parse detail html: %w", err)
	}

	article := doc.Find("#main-content article").First()
	if article.Length() == 0 {
		article = doc.Find("article").First()
	}

	d := &models.ListingDetail{
		Title: cleanText(article.Find("h1").First().Text()),
	}

	catLink := article.Find(`section:nth-of-type(2) div h2 a[href*="category_id"]`).First()
	if catLink.Length() == 0 {
		catLink = article.Find(`a[href*="category_id"]`).First()
	}
	if cat := cleanText(catLink.Text()); cat != "" {
		d.Category = &cat
	}

	profile := doc.Find(`a[aria-label*="프로필"]`).First()
	if profile.Length() > 0 {
		box := profile.Closest("div")
		loc := box.Find(`a[href*="in="]`).First()
		d.Location = cleanText(loc.Text())
		d.SellerNickname = sellerName(box, profile)
	}

	var paragraphs []string
	article.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	d.Description = strings.Join(paragraphs, "\n")

	body := cleanText(article.Text())
	d.ChatCount = matchCount(chatRe, body)
	d.InterestCount = matchCount(interestRe, body)
	d.ViewCount = matchCount(viewRe, body)
	if m := temperatureRe.FindStringSubmatch(cleanText(doc.Find("body").Text())); m != nil {
		d.MannerTemperature, _ = strconv.ParseFloat(m[1], 64)
	}

	images := map[string]struct{}{}
	article.Find("img").Each(func(_ int, img *goquery.Selection) {
		if img.Closest(`a[aria-label*="프로필"]`).Length() > 0 {
			return
		}
		if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
			images[src] = struct{}{}
		}
	})
	d.ImageCount = len(images)

	return d, nil
}

// sellerName picks the first link text in the profile box that is not the
// location link.
func sellerName(box, profile *goquery.Selection) string {
	if name := cleanText(profile.Text()); name != "" {
		return name
	}
	name := ""
	box.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(a.AttrOr("href", ""), "in=") {
			return true
		}
		if t := cleanText(a.Text()); t != "" {
			name = t
			return false
		}
		return true
	})
	return name
}

func matchCount(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
