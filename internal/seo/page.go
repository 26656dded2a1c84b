package seo

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	defaultDescription = "Search, clip and share the best moments from your favorite podcasts."
	maxDescription     = 200
)

// Site holds the defaults applied when metadata fields are missing.
type Site struct {
	Name         string
	SPAURL       string
	DefaultImage string
	Description  string
}

func (s Site) description() string {
	if d := strings.TrimSpace(s.Description); d != "" {
		return d
	}
	return defaultDescription
}

// ClipURL is the SPA address a shared clip opens.
func (s Site) ClipURL(id string) string {
	return strings.TrimRight(s.SPAURL, "/") + "/share?clip=" + url.QueryEscape(id)
}

// FeedURL is the SPA address a shared feed opens.
func (s Site) FeedURL(id string) string {
	return strings.TrimRight(s.SPAURL, "/") + "/app/feed/" + url.PathEscape(id)
}

// Page is the view model behind the crawler HTML.
type Page struct {
	Title       string
	FullTitle   string
	Description string
	Image       string
	Canonical   string
	SiteName    string
	OGType      string
	AudioURL    string
	TwitterCard string
	JSONLD      string // encoded by withJSONLD; written unescaped
}

// ClipPage builds the page for a clip.
func ClipPage(site Site, clip *Clip) (Page, error) {
	title := firstNonEmpty(clip.Title, clip.EpisodeTitle, site.Name)
	desc := site.description()
	if quote := strings.TrimSpace(clip.Quote); quote != "" {
		desc = "“" + truncate(quote, maxDescription-2) + "”"
	}
	p := Page{
		Title:       title,
		Description: desc,
		Image:       firstNonEmpty(clip.ImageURL, site.DefaultImage),
		Canonical:   site.ClipURL(clip.ID),
		SiteName:    site.Name,
		OGType:      "article",
		AudioURL:    clip.AudioURL,
		TwitterCard: "summary_large_image",
	}
	p.FullTitle = fullTitle(title, clip.PodcastName, site.Name)

	ld := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "PodcastEpisode",
		"name":        firstNonEmpty(clip.EpisodeTitle, title),
		"description": p.Description,
		"url":         p.Canonical,
		"image":       p.Image,
	}
	if clip.AudioURL != "" {
		ld["associatedMedia"] = map[string]any{
			"@type":      "MediaObject",
			"contentUrl": clip.AudioURL,
		}
	}
	if clip.PodcastName != "" {
		series := map[string]any{"@type": "PodcastSeries", "name": clip.PodcastName}
		if clip.FeedID != "" {
			series["url"] = site.FeedURL(clip.FeedID)
		}
		ld["partOfSeries"] = series
	}
	if clip.Published != "" {
		ld["datePublished"] = clip.Published
	}
	if clip.EndTime > clip.StartTime {
		ld["timeRequired"] = isoDuration(clip.EndTime - clip.StartTime)
	}
	return p.withJSONLD(ld)
}

// FeedPage builds the page for a podcast feed.
func FeedPage(site Site, feed *Feed) (Page, error) {
	title := firstNonEmpty(feed.Title, site.Name)
	p := Page{
		Title:       title,
		Description: truncate(firstNonEmpty(feed.Description, site.description()), maxDescription),
		Image:       firstNonEmpty(feed.ImageURL, site.DefaultImage),
		Canonical:   site.FeedURL(feed.ID),
		SiteName:    site.Name,
		OGType:      "website",
		TwitterCard: "summary_large_image",
	}
	p.FullTitle = fullTitle(title, "", site.Name)

	ld := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "PodcastSeries",
		"name":        title,
		"description": p.Description,
		"url":         p.Canonical,
		"image":       p.Image,
	}
	if feed.Author != "" {
		ld["author"] = map[string]any{"@type": "Person", "name": feed.Author}
	}
	if feed.FeedURL != "" {
		ld["webFeed"] = feed.FeedURL
	}
	return p.withJSONLD(ld)
}

// withJSONLD attaches ld. encoding/json escapes <, > and & so the result is
// safe inside a script element.
func (p Page) withJSONLD(ld map[string]any) (Page, error) {
	raw, err := json.Marshal(ld)
	if err != nil {
		return Page{}, fmt.Errorf("encode json-ld: %w", err)
	}
	p.JSONLD = string(raw)
	return p, nil
}

func fullTitle(title, podcast, site string) string {
	parts := []string{title}
	if podcast != "" && podcast != title {
		parts = append(parts, podcast)
	}
	if site != "" && site != title {
		parts = append(parts, site)
	}
	return strings.Join(parts, " | ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// truncate shortens s to at most n runes, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimRight(string(runes[:n-1]), " ")
	return cut + "…"
}

// isoDuration formats seconds as an ISO 8601 duration such as PT1M5S.
func isoDuration(seconds float64) string {
	total := int(seconds + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s > 0 || (h == 0 && m == 0) {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}
