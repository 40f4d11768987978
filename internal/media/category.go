// Package media classifies object keys into coarse media categories by their
// file extension.
package media

import "strings"

// Category is the media type of an object, derived from its key.
type Category string

const (
	Image    Category = "image"
	Video    Category = "video"
	Audio    Category = "audio"
	Document Category = "document"
	Model3D  Category = "model3d"
	Other    Category = "other"
)

// Row is one entry of the classification table.
type Row struct {
	Category   Category `json:"type"`
	Extensions []string `json:"extensions"`
}

// table is consulted top to bottom. "ogg" sits in both the video and the
// audio row; the video row comes first, so ogg classifies as video.
var table = []Row{
	{Image, []string{"jpg", "jpeg", "png", "gif", "bmp", "webp", "svg", "ico", "avif"}},
	{Video, []string{"mp4", "webm", "ogg", "mov", "avi", "mkv", "flv", "wmv", "m3u8"}},
	{Audio, []string{"mp3", "wav", "ogg", "flac", "aac", "m4a", "wma", "opus"}},
	{Document, []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "json", "xml", "html", "htm", "md"}},
	{Model3D, []string{"glb", "gltf", "fbx", "obj", "dae", "3ds", "ply"}},
}

// Classify returns the category of key. It is total: keys without a known
// extension, or without any extension, are Other.
func Classify(key string) Category {
	i := strings.LastIndexByte(key, '.')
	if i < 0 {
		return Other
	}
	ext := strings.ToLower(key[i+1:])
	for _, row := range table {
		for _, e := range row.Extensions {
			if e == ext {
				return row.Category
			}
		}
	}
	return Other
}

// Table returns a copy of the classification table in lookup order.
func Table() []Row {
	out := make([]Row, len(table))
	for i, row := range table {
		out[i] = Row{
			Category:   row.Category,
			Extensions: append([]string(nil), row.Extensions...),
		}
	}
	return out
}
