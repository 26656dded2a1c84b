package seo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCrawler(t *testing.T) {
	cases := map[string]bool{
		"facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)": true,
		"Twitterbot/1.0": true,
		"Slackbot-LinkExpanding 1.0 (+https://api.slack.com/robots)": true,
		"LinkedInBot/1.0 (compatible; Mozilla/5.0; Apache-HttpClient +http://www.linkedin.com)": true,
		"Mozilla/5.0 (compatible; Discordbot/2.0; +https://discordapp.com)":                     true,
		"TelegramBot (like TwitterBot)":                                                          true,
		"WhatsApp/2.23.20.0":                                                                     true,
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)":              true,
		"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)":               true,
		"Mozilla/5.0 (Macintosh) AppleWebKit/605.1.15 (KHTML, like Gecko) Applebot/0.1":         true,
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 Safari/605.1.15":     false,
		"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0":                false,
		"curl/8.6.0": false,
		"":           false,
	}
	for ua, want := range cases {
		assert.Equal(t, want, IsCrawler(ua), "ua=%q", ua)
	}
}
