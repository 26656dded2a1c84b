package seo

import "strings"

// crawlerTokens are lower-cased User-Agent fragments of link unfurlers and
// search bots.
var crawlerTokens = []string{
	"facebookexternalhit",
	"facebot",
	"twitterbot",
	"slackbot",
	"linkedinbot",
	"discordbot",
	"telegrambot",
	"whatsapp",
	"googlebot",
	"bingbot",
	"applebot",
	"redditbot",
	"pinterest",
	"embedly",
	"mastodon",
	"skypeuripreview",
	"vkshare",
	"duckduckbot",
	"yandexbot",
}

// IsCrawler reports whether ua belongs to a bot that needs server-rendered
// metadata.
func IsCrawler(ua string) bool {
	ua = strings.ToLower(ua)
	if ua == "" {
		return false
	}
	for _, token := range crawlerTokens {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}
