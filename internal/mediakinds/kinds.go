package mediakinds

// Kind classifies a library item by its broad media family.
type Kind string

const (
	// KindPhoto represents a still image.
	KindPhoto Kind = "photo"
	// KindVideo represents a video file.
	KindVideo Kind = "video"
	// KindOther represents anything the library does not manage.
	KindOther Kind = "other"
)

// PhotoExtensions maps file extensions to whether they are managed photo formats.
var PhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".heic": true,
	".heif": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
	".avif": true,
	".jp2":  true,
	".raw":  true,
	".cr2":  true,
	".nef":  true,
	".arw":  true,
	".dng":  true,
}

// VideoExtensions maps file extensions to whether they are managed video formats.
var VideoExtensions = map[string]bool{
	".mov":  true,
	".mp4":  true,
	".m4v":  true,
	".mkv":  true,
	".wmv":  true,
	".webm": true,
	".flv":  true,
	".3gp":  true,
	".mpg":  true,
	".mpeg": true,
	".vob":  true,
	".ts":   true,
	".mts":  true,
	".avi":  true,
}

// MimeTypes maps file extensions to their MIME types for the serving layer.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".heic": "image/heic",
	".heif": "image/heif",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".webp": "image/webp",
	".avif": "image/avif",

	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".avi":  "video/x-msvideo",
}

// ForExt returns the Kind for a file extension. The extension must be
// lowercase and include the leading dot (e.g. ".jpg").
func ForExt(ext string) Kind {
	if PhotoExtensions[ext] {
		return KindPhoto
	}
	if VideoExtensions[ext] {
		return KindVideo
	}
	return KindOther
}

// IsMedia returns true if the extension represents a managed media file.
func IsMedia(ext string) bool {
	return ForExt(ext) != KindOther
}

// MimeType returns the MIME type for a file extension, or
// "application/octet-stream" when unknown.
func MimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
