package services

import (
	"github.com/bogem/id3v2"
)

// Tagger writes ID3 title and artist frames to mp3 outputs.
type Tagger struct{}

func NewTagger() *Tagger {
	return &Tagger{}
}

func (t *Tagger) TagMP3(path, title, artist string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if title != "" {
		tag.SetTitle(title)
	}
	if artist != "" {
		tag.SetArtist(artist)
	}
	return tag.Save()
}
