package models

// Platform identifies the site a URL belongs to.
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformTikTok      Platform = "tiktok"
	PlatformInstagram   Platform = "instagram"
	PlatformTwitter     Platform = "twitter"
	PlatformFacebook    Platform = "facebook"
	PlatformVimeo       Platform = "vimeo"
	PlatformReddit      Platform = "reddit"
	PlatformTwitch      Platform = "twitch"
	PlatformDailymotion Platform = "dailymotion"
	PlatformSoundCloud  Platform = "soundcloud"
	PlatformPinterest   Platform = "pinterest"
	PlatformBilibili    Platform = "bilibili"
	PlatformNicovideo   Platform = "nicovideo"
	PlatformBandcamp    Platform = "bandcamp"
	PlatformMixcloud    Platform = "mixcloud"
	PlatformOther       Platform = "other"
	PlatformUnknown     Platform = "unknown"
)

// IsImageOnly reports whether the platform only serves image galleries.
func (p Platform) IsImageOnly() bool {
	return p == PlatformPinterest
}

// DisplayName is the human readable platform name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformTikTok:
		return "TikTok"
	case PlatformInstagram:
		return "Instagram"
	case PlatformTwitter:
		return "Twitter/X"
	case PlatformFacebook:
		return "Facebook"
	case PlatformVimeo:
		return "Vimeo"
	case PlatformReddit:
		return "Reddit"
	case PlatformTwitch:
		return "Twitch"
	case PlatformDailymotion:
		return "Dailymotion"
	case PlatformSoundCloud:
		return "SoundCloud"
	case PlatformPinterest:
		return "Pinterest"
	case PlatformBilibili:
		return "Bilibili"
	case PlatformNicovideo:
		return "Niconico"
	case PlatformBandcamp:
		return "Bandcamp"
	case PlatformMixcloud:
		return "Mixcloud"
	}
	return "Other"
}

// OutputType is the kind of file the caller wants.
type OutputType string

const (
	OutputVideo OutputType = "video"
	OutputAudio OutputType = "audio"
	OutputImage OutputType = "image"
)

// MediaOptions describes what to fetch and how.
type MediaOptions struct {
	URL        string
	OutputType OutputType
	Format     string
	Quality    string
}

// Format is one encoding advertised by the metadata provider.
type Format struct {
	FormatID string `json:"formatId"`
	Ext      string `json:"ext"`
	Quality  string `json:"quality,omitempty"`
	FileSize int64  `json:"filesize,omitempty"`
	HasVideo bool   `json:"hasVideo"`
	HasAudio bool   `json:"hasAudio"`
}

// MediaInfo is the metadata resolved for a URL before downloading.
type MediaInfo struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Thumbnail  string   `json:"thumbnail,omitempty"`
	Duration   float64  `json:"duration,omitempty"`
	Platform   Platform `json:"platform"`
	Uploader   string   `json:"uploader,omitempty"`
	ViewCount  int64    `json:"viewCount,omitempty"`
	MediaType  string   `json:"mediaType"`
	ImageCount int      `json:"imageCount,omitempty"`
	Formats    []Format `json:"formats,omitempty"`
}

// Stage is the sub-state reported alongside fetch progress.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageProcessing  Stage = "processing"
	StageConverting  Stage = "converting"
	StageCompleted   Stage = "completed"
)

// Progress is a single progress report from the fetch pipeline.
type Progress struct {
	Percent float64
	Stage   Stage
	Speed   string
	ETA     string
}

// ProgressFunc receives progress reports in the order they are produced.
type ProgressFunc func(Progress)

// FetchResult is the produced file and what was learned about it.
type FetchResult struct {
	FilePath  string
	FileSize  int64
	Title     string
	Thumbnail string
	// Format is the extension actually produced, which can differ from the
	// requested one.
	Format string
}
