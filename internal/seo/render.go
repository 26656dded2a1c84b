package seo

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// document is the page shell shared by share and error pages.
func document(title string, head, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n"+
			"<meta charset=\"utf-8\">\n"+
			"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n"+
			"<title>"+templ.EscapeString(title)+"</title>\n"); err != nil {
			return err
		}
		if err := head.Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</head>\n<body>\n"); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body>\n</html>\n")
		return err
	})
}

func metaTag(attr, key, content string) string {
	return "<meta " + attr + "=\"" + key + "\" content=\"" + templ.EscapeString(content) + "\">\n"
}

func link(href, text string) string {
	return "<p><a href=\"" + templ.EscapeString(string(templ.URL(href))) + "\">" + templ.EscapeString(text) + "</a></p>\n"
}

// shareHead renders the Open Graph, Twitter and JSON-LD tags for p.
func shareHead(p Page) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		tags := metaTag("name", "description", p.Description) +
			"<link rel=\"canonical\" href=\"" + templ.EscapeString(string(templ.URL(p.Canonical))) + "\">\n" +
			metaTag("property", "og:site_name", p.SiteName) +
			metaTag("property", "og:type", p.OGType) +
			metaTag("property", "og:title", p.Title) +
			metaTag("property", "og:description", p.Description) +
			metaTag("property", "og:url", p.Canonical) +
			metaTag("property", "og:image", p.Image)
		if p.AudioURL != "" {
			tags += metaTag("property", "og:audio", p.AudioURL)
		}
		tags += metaTag("name", "twitter:card", p.TwitterCard) +
			metaTag("name", "twitter:title", p.Title) +
			metaTag("name", "twitter:description", p.Description) +
			metaTag("name", "twitter:image", p.Image) +
			"<script type=\"application/ld+json\">" + p.JSONLD + "</script>\n"
		_, err := io.WriteString(w, tags)
		return err
	})
}

func shareBody(p Page) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<h1>"+templ.EscapeString(p.Title)+"</h1>\n"+
			"<p>"+templ.EscapeString(p.Description)+"</p>\n"+
			link(p.Canonical, "Open in "+p.SiteName))
		return err
	})
}

func pageComponent(p Page) templ.Component {
	return document(p.FullTitle, shareHead(p), shareBody(p))
}

func errorComponent(site Site, status int) templ.Component {
	heading := "Something went wrong"
	message := "We could not load this share link. Please try again shortly."
	if status == http.StatusNotFound {
		heading = "Not found"
		message = "This clip or podcast is no longer available."
	}
	head := templ.Raw(metaTag("name", "robots", "noindex"))
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<h1>"+templ.EscapeString(heading)+"</h1>\n"+
			"<p>"+templ.EscapeString(message)+"</p>\n"+
			link(site.SPAURL, "Go to "+site.Name))
		return err
	})
	return document(heading+" | "+site.Name, head, body)
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Cache-Control", cacheControl(status))
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

func cacheControl(status int) string {
	if status == http.StatusOK {
		return "public, max-age=300"
	}
	return "no-store"
}
