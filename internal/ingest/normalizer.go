package ingest

import (
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/campaign-radar/internal/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// campaignNamespace scopes campaign ids derived with uuid.NewSHA1.
var campaignNamespace = uuid.MustParse("6f1c2b7e-3d4a-5e8f-9a0b-1c2d3e4f5a6b")

var strictPolicy = bluemonday.StrictPolicy()

// CampaignID derives a stable id from the source tag and title. The same
// pair always yields the same id.
func CampaignID(source, title string) string {
	return uuid.NewSHA1(campaignNamespace, []byte(source+"\x00"+title)).String()
}

// TruncateRunes cuts s to at most n code points.
func TruncateRunes(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// TruncateText cuts a string to maxLen code points, appending an ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return TruncateRunes(text, maxLen-3) + "..."
	}
	return TruncateRunes(text, maxLen)
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return cleanText(s) // Fallback to original if parsing fails
	}
	return cleanText(doc.Text())
}

// plainText strips any markup left in extracted text and normalizes whitespace.
func plainText(s string) string {
	s = strings.ToValidUTF8(s, "")
	return cleanText(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// CanonicalizeURL lowercases the host and drops fragments and tracking params.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// Normalize host to lowercase
	u.Host = strings.ToLower(u.Host)
	// Remove fragment
	u.Fragment = ""

	if u.RawQuery == "" {
		return u.String()
	}

	q := u.Query()
	// Remove common tracking params
	for k := range q {
		if strings.HasPrefix(k, "utm_") {
			q.Del(k)
		}
	}
	for _, p := range []string{"fbclid", "gclid", "mc_cid", "mc_eid", "mkt_tok", "scid", "s_cid"} {
		q.Del(p)
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// resolveLink returns href resolved against page as an absolute http(s) URL,
// or "" when href is unusable.
func resolveLink(page *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := ref
	if page != nil {
		abs = page.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return CanonicalizeURL(abs.String())
}

// NormalizeCampaign enforces the record invariants in place: clean text,
// non-nil collections, and no danger reason unless flagged.
func NormalizeCampaign(c *models.Campaign) {
	c.Title = cleanText(c.Title)
	c.Description = cleanText(c.Description)
	c.RequiredCards = nonNil(c.RequiredCards)
	c.TargetStores = nonNil(c.TargetStores)
	c.ActionSteps = nonNil(c.ActionSteps)
	if c.ReturnRatePercent < 0 {
		c.ReturnRatePercent = 0
	}
	if !c.IsDangerous || (c.DangerReason != nil && *c.DangerReason == "") {
		c.DangerReason = nil
	}
	if c.ID == "" {
		c.ID = CampaignID(c.Source, c.Title)
	}
}
