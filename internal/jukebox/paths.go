package jukebox

import (
	"path/filepath"
	"strings"
)

const (
	unknownTitle  = "Unknown Title"
	unknownArtist = "Unknown Artist"
)

var dirNameReplacer = strings.NewReplacer(
	"/", "_",
	`\`, "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// TrackDirName maps a track title to the name of its directory under the
// download root.
func TrackDirName(title string) string {
	name := strings.TrimSpace(dirNameReplacer.Replace(title))
	name = strings.Trim(name, ". ")
	if name == "" {
		return unknownTitle
	}
	return name
}

// outputTemplate names the audio file after its directory. The name is a
// literal, so yt-dlp's own title sanitising never applies to it.
func outputTemplate(name string) string {
	return strings.ReplaceAll(name, "%", "%%") + ".%(ext)s"
}

var audioExtensions = map[string]string{
	"mp3":    ".mp3",
	"aac":    ".m4a",
	"m4a":    ".m4a",
	"alac":   ".m4a",
	"opus":   ".opus",
	"vorbis": ".ogg",
	"flac":   ".flac",
	"wav":    ".wav",
}

// AudioExtension returns the file suffix yt-dlp produces for an audio codec.
func AudioExtension(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if ext, ok := audioExtensions[format]; ok {
		return ext
	}
	if format == "" {
		return ".mp3"
	}
	return "." + format
}

// NormalizeExtension rewrites path to carry the suffix of format. The
// collaborator may report the pre-transcode name (e.g. ".webm").
func NormalizeExtension(path, format string) string {
	want := AudioExtension(format)
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, want) {
		return path
	}
	return strings.TrimSuffix(path, ext) + want
}

func orPlaceholder(v, placeholder string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}
