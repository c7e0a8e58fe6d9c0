package daangn

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BuildSearchURL builds the buy-sell search URL for keyword and the optional
// price bounds. A bound left nil is sent as an empty side of "min__max".
func BuildSearchURL(base, keyword string, minPrice, maxPrice *int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("daangn: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("daangn: base url %q is not absolute", base)
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return "", fmt.Errorf("daangn: min price %d is above max price %d", *minPrice, *maxPrice)
	}

	// Keep whatever the base already carries, minus the keys set here.
	kept := u.Query()
	kept.Del("search")
	kept.Del("price")

	var params []string
	if rest := kept.Encode(); rest != "" {
		params = append(params, rest)
	}
	if kw := strings.TrimSpace(keyword); kw != "" {
		params = append(params, "search="+escapeKeyword(kw))
	}
	if minPrice != nil || maxPrice != nil {
		params = append(params, "price="+bound(minPrice)+"__"+bound(maxPrice))
	}

	u.RawQuery = strings.Join(params, "&")
	u.Fragment = ""
	return u.String(), nil
}

// escapeKeyword percent-encodes kw with spaces as %20, the form the site
// itself produces.
func escapeKeyword(kw string) string {
	return strings.ReplaceAll(url.QueryEscape(kw), "+", "%20")
}

func bound(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
