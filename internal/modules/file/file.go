// Package file stores uploaded featured images on local disk and serves them
// back under /uploads.
package file

import (
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quillspace/core/internal/pkg/errs"
	"github.com/quillspace/core/internal/pkg/response"
)

// maxImageSize caps featured image uploads at 5 MiB.
const maxImageSize = 5 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Storage writes uploads into a single flat directory and hands out /uploads
// URIs for them.
type Storage struct {
	dir string
}

func NewStorage(dir string) *Storage {
	return &Storage{dir: dir}
}

// SaveImage validates and stores an uploaded image, returning its public URI.
func (s *Storage) SaveImage(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if fh.Size > maxImageSize {
		return "", errs.Validation("image must be at most 5 MB")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExts[ext] {
		return "", errs.Validation("image must be jpg, jpeg, png, gif or webp")
	}

	name := buildFileName(ext)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errs.Internal(err)
	}
	if err := c.SaveUploadedFile(fh, filepath.Join(s.dir, name)); err != nil {
		return "", errs.Internal(err)
	}
	return "/uploads/" + name, nil
}

// Remove deletes a stored file by its /uploads URI. Unknown URIs are ignored.
func (s *Storage) Remove(uri string) {
	if !strings.HasPrefix(uri, "/uploads/") {
		return
	}
	name := safeName(strings.TrimPrefix(uri, "/uploads/"))
	if name == "" {
		return
	}
	_ = os.Remove(filepath.Join(s.dir, name))
}

type Handler struct {
	storage *Storage
}

func NewHandler(storage *Storage) *Handler { return &Handler{storage: storage} }

// RegisterRoutes serves stored uploads. Mounted at the engine root, outside
// the /api prefix.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/uploads/:name", h.get)
}

// GET /uploads/:name
func (h *Handler) get(c *gin.Context) {
	name := safeName(c.Param("name"))
	if name == "" {
		response.NotFound(c, "file not found")
		return
	}
	path := filepath.Join(h.storage.dir, name)
	if _, err := os.Stat(path); err != nil {
		response.NotFound(c, "file not found")
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000")
	c.File(path)
}

func buildFileName(ext string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:18] + ext
}

func safeName(raw string) string {
	name := filepath.Base(strings.TrimSpace(raw))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return ""
	}
	if !isSafeSegment(name) {
		return ""
	}
	return name
}

func isSafeSegment(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}
