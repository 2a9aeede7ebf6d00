package services

import (
	"net/url"
	"strings"

	"github.com/vicradon/media-fetcher/models"
)

type platformRule struct {
	substrings []string
	platform   models.Platform
}

// platformRules is checked in order; the first match wins.
var platformRules = []platformRule{
	{[]string{"youtube.com", "youtu.be"}, models.PlatformYouTube},
	{[]string{"tiktok.com"}, models.PlatformTikTok},
	{[]string{"instagram.com"}, models.PlatformInstagram},
	{[]string{"twitter.com", "x.com"}, models.PlatformTwitter},
	{[]string{"facebook.com", "fb.watch"}, models.PlatformFacebook},
	{[]string{"vimeo.com"}, models.PlatformVimeo},
	{[]string{"reddit.com"}, models.PlatformReddit},
	{[]string{"twitch.tv"}, models.PlatformTwitch},
	{[]string{"dailymotion.com"}, models.PlatformDailymotion},
	{[]string{"soundcloud.com"}, models.PlatformSoundCloud},
	{[]string{"pinterest.com", "pin.it"}, models.PlatformPinterest},
	{[]string{"bilibili.com", "b23.tv"}, models.PlatformBilibili},
	{[]string{"nicovideo.jp", "nico.ms"}, models.PlatformNicovideo},
	{[]string{"bandcamp.com"}, models.PlatformBandcamp},
	{[]string{"mixcloud.com"}, models.PlatformMixcloud},
}

// ResolvePlatform maps a URL to its platform by case-insensitive substring
// matching. Unmatched URLs resolve to PlatformOther.
func ResolvePlatform(rawURL string) models.Platform {
	lower := strings.ToLower(rawURL)
	for _, rule := range platformRules {
		if containsAny(lower, rule.substrings...) {
			return rule.platform
		}
	}
	return models.PlatformOther
}

// platformForJob is the tag stored on new jobs; blank input is never resolved.
func platformForJob(rawURL string) models.Platform {
	if strings.TrimSpace(rawURL) == "" {
		return models.PlatformUnknown
	}
	return ResolvePlatform(rawURL)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ExtractVideoID returns the YouTube video ID of a watch or short link.
func ExtractVideoID(videoURL string) string {
	u, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "youtu.be" {
		return strings.Trim(u.Path, "/")
	}
	if strings.HasPrefix(u.Path, "/shorts/") {
		return strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
	}
	return u.Query().Get("v")
}

// ExtractPlaylistID returns the list= parameter of a YouTube URL.
func ExtractPlaylistID(playlistURL string) string {
	u, err := url.Parse(playlistURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}
