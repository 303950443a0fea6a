package api

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

const maxObjectKeyLength = 200

var allowedImageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// imageExtension returns the lowercase extension when it is an accepted image type.
func imageExtension(filename string) (string, bool) {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	_, ok := allowedImageExtensions[ext]
	return ext, ok
}

// isExternalImageRef 判断图片引用是否为外部 URL（不经过对象存储）。
func isExternalImageRef(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:image/")
}

// isValidUserImageObjectKey 校验对象 key 属于该用户的上传目录，防止引用他人的图片。
func isValidUserImageObjectKey(userID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	expected := fmt.Sprintf("book-images/%d/", userID)
	if !strings.HasPrefix(key, expected) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > maxObjectKeyLength {
		return false
	}
	_, ok := imageExtension(key)
	return ok
}

// validImageRef accepts empty refs, external URLs, or the user's own object keys.
func validImageRef(userID uint, ref string) bool {
	ref = strings.TrimSpace(ref)
	return ref == "" || isExternalImageRef(ref) || isValidUserImageObjectKey(userID, ref)
}
