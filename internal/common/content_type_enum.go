package common

import "strings"

// MediaFileType is the stored kind of an uploaded file.
type MediaFileType string

const (
	MediaFileTypeImage MediaFileType = "image"
	MediaFileTypeVideo MediaFileType = "video"
)

func (mft MediaFileType) String() string {
	return string(mft)
}

func (mft MediaFileType) IsValid() bool {
	return mft == MediaFileTypeImage || mft == MediaFileTypeVideo
}

func DetectFileType(mimeType string) MediaFileType {
	lowerMimeType := strings.ToLower(mimeType)
	if strings.HasPrefix(lowerMimeType, "image/") {
		return MediaFileTypeImage
	}
	if strings.HasPrefix(lowerMimeType, "video/") {
		return MediaFileTypeVideo
	}
	return MediaFileTypeImage
}

// UploadCategory selects what an upload becomes. The zero value is invalid.
type UploadCategory uint8

const (
	CategoryPost UploadCategory = iota + 1
	CategoryStory
)

func (c UploadCategory) String() string {
	switch c {
	case CategoryPost:
		return "post"
	case CategoryStory:
		return "story"
	default:
		return "unknown"
	}
}

// ParseUploadCategory accepts the form value sent by clients.
func ParseUploadCategory(s string) (UploadCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "post":
		return CategoryPost, nil
	case "story":
		return CategoryStory, nil
	default:
		return 0, Validationf("unknown upload category %q", s)
	}
}
