package tag

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/database"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/pkg/errs"
	"github.com/quillspace/core/internal/pkg/response"
	"github.com/quillspace/core/internal/pkg/slug"
	"gorm.io/gorm"
)

type CreateTagDTO struct {
	Name string `json:"name" binding:"required"`
}

// WithCount pairs a tag with the number of posts carrying it.
type WithCount struct {
	models.TagModel
	PostCount int64 `json:"postCount"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) Create(dto *CreateTagDTO) (*models.TagModel, error) {
	t := models.TagModel{
		Name: dto.Name,
		Slug: slug.Make(dto.Name),
	}
	if t.Slug == "" {
		return nil, errs.Validation("tag name must contain letters or digits")
	}
	var n int64
	if err := s.db.Model(&models.TagModel{}).Where("slug = ?", t.Slug).Count(&n).Error; err != nil {
		return nil, errs.Internal(err)
	}
	if n > 0 {
		return nil, errs.Conflict("a tag with this name already exists")
	}
	if err := s.db.Create(&t).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, errs.Conflict("a tag with this name already exists")
		}
		return nil, errs.Internal(err)
	}
	return &t, nil
}

// GetOrCreate resolves names to tags, creating any that do not exist yet. A
// concurrent create of the same name is absorbed by re-reading after the
// duplicate error.
func (s *Service) GetOrCreate(names []string) ([]models.TagModel, error) {
	tags := make([]models.TagModel, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		sl := slug.Make(name)
		if sl == "" || seen[sl] {
			continue
		}
		seen[sl] = true
		var t models.TagModel
		err := s.db.Where("slug = ?", sl).First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			t = models.TagModel{Name: name, Slug: sl}
			if err := s.db.Create(&t).Error; err != nil {
				if !database.IsDuplicate(err) {
					return nil, errs.Internal(err)
				}
				if err := s.db.Where("slug = ?", sl).First(&t).Error; err != nil {
					return nil, errs.Internal(err)
				}
			}
		} else if err != nil {
			return nil, errs.Internal(err)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// List returns every tag with its post count in a single grouped query.
func (s *Service) List() ([]WithCount, error) {
	items := []WithCount{}
	err := s.db.Model(&models.TagModel{}).
		Select("tags.*, COUNT(post_tags.post_model_id) AS post_count").
		Joins("LEFT JOIN post_tags ON post_tags.tag_model_id = tags.id").
		Group("tags.id").
		Order("tags.name ASC").
		Find(&items).Error
	if err != nil {
		return nil, errs.Internal(err)
	}
	return items, nil
}

func (s *Service) BySlug(slugStr string) (*models.TagModel, error) {
	var t models.TagModel
	if err := s.db.Where("slug = ?", slugStr).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("tag not found")
		}
		return nil, errs.Internal(err)
	}
	return &t, nil
}

func (s *Service) Delete(id string) error {
	var t models.TagModel
	if err := s.db.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("tag not found")
		}
		return errs.Internal(err)
	}
	// Detach from posts first so the join table never holds dangling rows.
	if err := s.db.Exec("DELETE FROM post_tags WHERE tag_model_id = ?", t.ID).Error; err != nil {
		return errs.Internal(err)
	}
	if err := s.db.Delete(&t).Error; err != nil {
		return errs.Internal(err)
	}
	return nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, authorMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/tags")
	g.GET("", h.list)

	a := g.Group("", authMW, authorMW)
	a.POST("", h.create)
	a.DELETE("/:id", adminMW, h.delete)
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/tags")
	g.GET("", h.list)
	g.GET("/:slug", h.bySlug)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup, adminMW gin.HandlerFunc) {
	g := rg.Group("/tags")
	g.GET("", h.list)
	g.POST("", h.create)
	g.DELETE("/:id", adminMW, h.delete)
}

// GET /tags
func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List()
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, gin.H{"tags": items})
}

// GET /public/tags/:slug
func (h *Handler) bySlug(c *gin.Context) {
	t, err := h.svc.BySlug(c.Param("slug"))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, t)
}

// POST /tags
func (h *Handler) create(c *gin.Context) {
	var dto CreateTagDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	t, err := h.svc.Create(&dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Created(c, t)
}

// DELETE /tags/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.Err(c, err)
		return
	}
	response.NoContent(c)
}
