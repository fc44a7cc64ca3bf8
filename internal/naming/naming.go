// Package naming derives every on-disk name a track produces.
//
// All names follow the grammar "{base_name} ({Tag}[ {Variant}]).{ext}" and are
// computed from inputs alone, so a rerun with identical inputs resolves to
// byte-identical paths. The stage gate depends on this: a drifting name reads
// as "not done".
package naming

import (
	"fmt"
	"path/filepath"
	"strings"

	"karaokeprep/internal/services"
	"karaokeprep/internal/textutil"
)

// Stage tags used in output file names.
const (
	TagOriginal     = "Original"
	TagInstrumental = "Instrumental"
	TagVocals       = "Vocals"
	TagLyrics       = "Lyrics"
	TagTitle        = "Title"
	TagFinal        = "Final Karaoke"
	TagBrandCode    = "Brand Code"
	TagPublished    = "Published"
)

// Identity is the normalized (artist, title) pair for one track.
type Identity struct {
	Artist string
	Title  string
	base   string
}

// NewIdentity trims artist and title and computes the sanitized base name.
func NewIdentity(artist, title string) (Identity, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" || title == "" {
		return Identity{}, services.Wrap(services.ErrValidation, "naming", "identity", "artist and title are required", nil)
	}
	base := SanitizeBaseName(artist + " - " + title)
	if base == "" {
		return Identity{}, services.Wrap(services.ErrValidation, "naming", "identity",
			fmt.Sprintf("%q / %q sanitize to an empty name", artist, title), nil)
	}
	return Identity{Artist: artist, Title: title, base: base}, nil
}

// BaseName returns the filesystem-safe name shared by all of the track's outputs.
func (i Identity) BaseName() string {
	return i.base
}

func (i Identity) String() string {
	return i.base
}

// SanitizeBaseName is idempotent: SanitizeBaseName(SanitizeBaseName(s)) == SanitizeBaseName(s).
func SanitizeBaseName(s string) string {
	return textutil.SanitizeFileName(s)
}

// FileName renders "{base} ({tag}[ {variant}]).{ext}".
func FileName(base, tag, variant, ext string) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString(" (")
	b.WriteString(tag)
	if variant = SanitizeBaseName(variant); variant != "" {
		b.WriteByte(' ')
		b.WriteString(variant)
	}
	b.WriteByte(')')
	if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}

// PathFor joins dir with FileName.
func PathFor(dir, base, tag, variant, ext string) string {
	return filepath.Join(dir, FileName(base, tag, variant, ext))
}

// Output is one expected artifact of a stage.
type Output struct {
	Tag     string
	Variant string
	Ext     string
}

// Path resolves the output inside dir for the given base name.
func (o Output) Path(dir, base string) string {
	return PathFor(dir, base, o.Tag, o.Variant, o.Ext)
}

// Paths resolves every output in order.
func Paths(dir, base string, outputs ...Output) []string {
	paths := make([]string, 0, len(outputs))
	for _, o := range outputs {
		paths = append(paths, o.Path(dir, base))
	}
	return paths
}

// OrganisedDirName is the folder finished work is filed under: "{code} - {base}".
func OrganisedDirName(code, base string) string {
	return code + " - " + base
}
