package tagging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"mixsplit/internal/identification"
	"mixsplit/internal/services"
)

// Tags are the fields written to a track file.
type Tags struct {
	identification.Metadata
	TrackNumber int
	Comment     string
}

// Tagger writes tags and artwork in place.
type Tagger struct{}

// NewTagger returns a tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// Tag writes tags and optional artwork into path according to its extension.
// Failures are tagged ErrTagWriteFailure.
func (t *Tagger) Tag(path string, tags Tags, art *Artwork) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		err = writeFLAC(path, tags, art)
	case ".mp3":
		err = writeMP3(path, tags, art)
	default:
		err = fmt.Errorf("unsupported tag container %q", filepath.Ext(path))
	}
	if err != nil {
		return services.Wrap(services.ErrTagWriteFailure, "tag", "write", filepath.Base(path), err)
	}
	return nil
}

func writeFLAC(path string, tags Tags, art *Artwork) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse flac: %w", err)
	}

	kept := make([]*flac.MetaDataBlock, 0, len(f.Meta))
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment && block.Type != flac.Picture {
			kept = append(kept, block)
		}
	}
	f.Meta = kept

	comment := flacvorbis.New()
	fields := [][2]string{
		{flacvorbis.FIELD_TITLE, tags.Title},
		{flacvorbis.FIELD_ARTIST, tags.Artist},
		{flacvorbis.FIELD_ALBUM, tags.Album},
		{flacvorbis.FIELD_DATE, tags.Year},
		{flacvorbis.FIELD_GENRE, tags.Genre},
		{flacvorbis.FIELD_ORGANIZATION, tags.Label},
		{flacvorbis.FIELD_ISRC, tags.ISRC},
		{"COMMENT", tags.Comment},
	}
	if tags.TrackNumber > 0 {
		fields = append(fields, [2]string{flacvorbis.FIELD_TRACKNUMBER, fmt.Sprintf("%d", tags.TrackNumber)})
	}
	for _, field := range fields {
		if value := strings.TrimSpace(field[1]); value != "" {
			if err := comment.Add(field[0], value); err != nil {
				return fmt.Errorf("add %s: %w", field[0], err)
			}
		}
	}
	commentBlock := comment.Marshal()
	f.Meta = append(f.Meta, &commentBlock)

	if art != nil && len(art.Data) > 0 {
		// Covers that cannot be decoded as JPEG or PNG are left out; the
		// text tags are still written.
		if picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front Cover", art.Data, art.MIME); err == nil {
			pictureBlock := picture.Marshal()
			f.Meta = append(f.Meta, &pictureBlock)
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save flac: %w", err)
	}
	return nil
}

func writeMP3(path string, tags Tags, art *Artwork) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetVersion(4)
	tag.SetTitle(tags.Title)
	tag.SetArtist(tags.Artist)
	tag.SetAlbum(tags.Album)
	tag.SetYear(tags.Year)
	tag.SetGenre(tags.Genre)
	if tags.Label != "" {
		tag.AddTextFrame(tag.CommonID("Publisher"), id3v2.EncodingUTF8, tags.Label)
	}
	if tags.ISRC != "" {
		tag.AddTextFrame(tag.CommonID("ISRC"), id3v2.EncodingUTF8, tags.ISRC)
	}
	if tags.TrackNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, fmt.Sprintf("%d", tags.TrackNumber))
	}
	if tags.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "",
			Text:        tags.Comment,
		})
	}
	if art != nil && len(art.Data) > 0 {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    art.MIME,
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     art.Data,
		})
	}
	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3: %w", err)
	}
	return nil
}
