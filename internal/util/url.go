package util

import (
	"net/url"
	"strings"
)

// trackingParams are stripped from listing URLs so repeated scrapes of the same
// product produce the same detail URL.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"ref", "ref_", "pf_rd_r", "pf_rd_p", "qid", "sr", "lid", "marketplace", "otracker", "fm", "iid", "ssid", "spIndex",
}

// AbsoluteURL resolves href against base, which is how marketplace listings
// hand out relative product links.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// NormalizeURL forces https, drops a trailing slash and removes tracking query parameters.
func NormalizeURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}
	if parsedURL.Host == "" {
		return rawURL, nil
	}

	parsedURL.Scheme = "https"
	if len(parsedURL.Path) > 1 && strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path = parsedURL.Path[:len(parsedURL.Path)-1]
		// Clear RawPath to ensure String() regenerates the URL path without the trailing slash
		parsedURL.RawPath = ""
	}
	queryParams := parsedURL.Query()
	for _, param := range trackingParams {
		queryParams.Del(param)
	}
	parsedURL.RawQuery = queryParams.Encode()
	return parsedURL.String(), nil
}
