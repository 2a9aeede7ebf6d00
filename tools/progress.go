package tools

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vicradon/media-fetcher/models"
)

var (
	ytdlpPercent = regexp.MustCompile(`(\d+\.?\d*)%`)
	ytdlpSpeed   = regexp.MustCompile(`at\s+([0-9.]+[KMGT]?i?B/s)`)
	ytdlpETA     = regexp.MustCompile(`ETA\s+([0-9:]+)`)

	aria2Percent = regexp.MustCompile(`\((\d+)%\)`)
	aria2Speed   = regexp.MustCompile(`DL:([0-9.]+[KMGT]?i?B)`)
	aria2ETA     = regexp.MustCompile(`ETA:([0-9hms]+)`)
)

// ytdlpPostProcessors are line prefixes yt-dlp prints once the transfer is
// done and it is converting or merging.
var ytdlpPostProcessors = []string{"[ExtractAudio]", "[Merger]", "[VideoConvertor]", "[FixupM3u8]"}

// parseYtdlpLine parses a yt-dlp --newline progress line. ok is false for
// lines that carry no progress.
func parseYtdlpLine(line string) (models.Progress, bool) {
	for _, prefix := range ytdlpPostProcessors {
		if strings.HasPrefix(line, prefix) {
			return models.Progress{Stage: models.StageConverting}, true
		}
	}
	if !strings.HasPrefix(line, "[download]") {
		return models.Progress{}, false
	}
	m := ytdlpPercent.FindStringSubmatch(line)
	if m == nil {
		return models.Progress{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.Progress{}, false
	}

	p := models.Progress{Percent: min(pct, 99), Stage: models.StageDownloading}
	if s := ytdlpSpeed.FindStringSubmatch(line); s != nil {
		p.Speed = s[1]
	}
	if e := ytdlpETA.FindStringSubmatch(line); e != nil {
		p.ETA = e[1]
	}
	return p, true
}

// parseAria2Line parses an aria2c console readout such as
// "[#2089b0 4.0MiB/10MiB(40%) CN:16 DL:2.1MiB ETA:3s]".
func parseAria2Line(line string) (models.Progress, bool) {
	m := aria2Percent.FindStringSubmatch(line)
	if m == nil {
		return models.Progress{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.Progress{}, false
	}

	p := models.Progress{Percent: pct, Stage: models.StageDownloading}
	if s := aria2Speed.FindStringSubmatch(line); s != nil {
		p.Speed = s[1] + "/s"
	}
	if e := aria2ETA.FindStringSubmatch(line); e != nil {
		p.ETA = e[1]
	}
	return p, true
}
