// Package seo serves share links for clips and podcast feeds.
//
// Link unfurlers and search bots (see IsCrawler) receive a small HTML page
// with title, description, OpenGraph, Twitter card and JSON-LD metadata.
// Everyone else is redirected to the single-page app:
//
//	/share/clip/{id}  ->  {spa}/share?clip={id}
//	/share/feed/{id}  ->  {spa}/app/feed/{id}
//
// Metadata comes from the content API through CachedContent, which keeps
// responses in Redis or process memory for the configured TTL. A failing
// cache is logged and skipped. Unknown ids get a 404 page; any other
// failure gets a 500 page.
//
// Pages are templ components. Text and attribute values go through
// templ.EscapeString, links through templ.URL, and JSON-LD is written as
// encoded by encoding/json.
package seo
