// Package filename derives display names and object keys for stored files.
package filename

import (
	"mime"
	"strings"
)

// UnknownExtension is appended when neither the name nor the content reveals a
// type. It deliberately has no leading dot.
const UnknownExtension = "unknown"

var mimeExtensions = map[string]string{
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"application/pdf":    ".pdf",
	"text/plain":         ".txt",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/zip":  ".zip",
	"application/json": ".json",
	"text/html":        ".html",
	"application/xml":  ".xml",
}

// Mapping ties the name a user sees to the key an object is stored under.
type Mapping struct {
	DisplayName    string
	StorageKey     string
	StorageKeyBase string
	// Extension includes its leading dot, except for UnknownExtension.
	Extension string
}

// Build maps a name without content inspection.
func Build(fileID, originalName string) Mapping {
	ext := Extension(originalName)
	return Mapping{
		DisplayName:    originalName,
		StorageKey:     fileID + ext,
		StorageKeyBase: fileID,
		Extension:      ext,
	}
}

// BuildWithSniffer is Build, except that a name without a usable extension gets
// one from the MIME type reported by sniff. A nil sniff behaves like Build.
func BuildWithSniffer(fileID, originalName string, sniff func() (string, error)) (Mapping, error) {
	if Extension(originalName) != "" || sniff == nil {
		return Build(fileID, originalName), nil
	}

	detected, err := sniff()
	if err != nil {
		return Mapping{}, err
	}
	ext := ExtensionForMIME(detected)
	return Mapping{
		DisplayName:    originalName + ext,
		StorageKey:     fileID + ext,
		StorageKeyBase: fileID,
		Extension:      ext,
	}, nil
}

// Rename keeps the extension of currentName and the storage key of fileID.
func Rename(fileID, currentName, newName string) Mapping {
	ext := Extension(currentName)
	return Mapping{
		DisplayName:    newName + ext,
		StorageKey:     fileID + ext,
		StorageKeyBase: fileID,
		Extension:      ext,
	}
}

// Extension returns the suffix starting at the last dot, or "" when the name
// has no dot or only a leading one (".bashrc").
func Extension(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

// ExtensionForMIME looks up a media type, ignoring parameters and case.
func ExtensionForMIME(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if ext, ok := mimeExtensions[strings.ToLower(mediaType)]; ok {
		return ext
	}
	return UnknownExtension
}
