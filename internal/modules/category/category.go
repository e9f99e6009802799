package category

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

type CreateCategoryDTO struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateCategoryDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// WithCount pairs a category with the number of posts referencing it.
type WithCount struct {
	models.CategoryModel
	PostCount int64 `json:"postCount"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) Create(dto *CreateCategoryDTO) (*models.CategoryModel, error) {
	cat := models.CategoryModel{
		Name:        dto.Name,
		Slug:        slug.Make(dto.Name),
		Description: dto.Description,
	}
	if cat.Slug == "" {
		return nil, errs.Validation("category name must contain letters or digits")
	}
	if err := s.available(cat.Name, cat.Slug, ""); err != nil {
		return nil, err
	}
	if err := s.db.Create(&cat).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, errs.Conflict("a category with this name already exists")
		}
		return nil, errs.Internal(err)
	}
	return &cat, nil
}

func (s *Service) Update(id string, dto *UpdateCategoryDTO) (*models.CategoryModel, error) {
	cat, err := s.byID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if dto.Name != nil && *dto.Name != cat.Name {
		newSlug := slug.Make(*dto.Name)
		if newSlug == "" {
			return nil, errs.Validation("category name must contain letters or digits")
		}
		if err := s.available(*dto.Name, newSlug, cat.ID); err != nil {
			return nil, err
		}
		updates["name"] = *dto.Name
		updates["slug"] = newSlug
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if len(updates) == 0 {
		return cat, nil
	}

	if err := s.db.Model(cat).Updates(updates).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, errs.Conflict("a category with this name already exists")
		}
		return nil, errs.Internal(err)
	}
	return s.byID(id)
}

// Delete refuses while any post still references the category.
func (s *Service) Delete(id string) error {
	cat, err := s.byID(id)
	if err != nil {
		return err
	}

	var refs int64
	if err := s.db.Model(&models.PostModel{}).Where("category_id = ?", cat.ID).Count(&refs).Error; err != nil {
		return errs.Internal(err)
	}
	if refs > 0 {
		return errs.Conflict("category has posts and cannot be deleted")
	}
	if err := s.db.Delete(cat).Error; err != nil {
		return errs.Internal(err)
	}
	return nil
}

// List returns every category with its post count in a single grouped query.
func (s *Service) List() ([]WithCount, error) {
	items := []WithCount{}
	err := s.db.Model(&models.CategoryModel{}).
		Select("categories.*, COUNT(posts.id) AS post_count").
		Joins("LEFT JOIN posts ON posts.category_id = categories.id").
		Group("categories.id").
		Order("categories.name ASC").
		Find(&items).Error
	if err != nil {
		return nil, errs.Internal(err)
	}
	return items, nil
}

// BySlug returns the category together with its published posts.
func (s *Service) BySlug(slugStr string) (*models.CategoryModel, error) {
	var cat models.CategoryModel
	err := s.db.
		Preload("Posts", "status = ?", models.StatusPublished).
		Where("slug = ?", slugStr).
		First(&cat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("category not found")
		}
		return nil, errs.Internal(err)
	}
	return &cat, nil
}

// available reports a conflict when another category already holds the name
// or slug. The unique index is the authoritative guard; this pre-check exists
// for a friendly error before the write.
func (s *Service) available(name, slugStr, excludeID string) error {
	q := s.db.Model(&models.CategoryModel{}).Where("name = ? OR slug = ?", name, slugStr)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return errs.Internal(err)
	}
	if n > 0 {
		return errs.Conflict("a category with this name already exists")
	}
	return nil
}

func (s *Service) byID(id string) (*models.CategoryModel, error) {
	var cat models.CategoryModel
	if err := s.db.First(&cat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("category not found")
		}
		return nil, errs.Internal(err)
	}
	return &cat, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the authoring endpoints. authMW authenticates,
// authorMW requires the author or admin role, and adminMW requires admin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, authorMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/categories")
	g.GET("", h.list)

	a := g.Group("", authMW, authorMW)
	a.POST("", h.create)
	a.PUT("/:id", h.update)
	a.DELETE("/:id", adminMW, h.delete)
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/categories")
	g.GET("", h.list)
	g.GET("/:slug", h.bySlug)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup, adminMW gin.HandlerFunc) {
	g := rg.Group("/categories")
	g.GET("", h.list)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", adminMW, h.delete)
}

// GET /categories
func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List()
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, gin.H{"categories": items})
}

// GET /public/categories/:slug
func (h *Handler) bySlug(c *gin.Context) {
	cat, err := h.svc.BySlug(c.Param("slug"))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, cat)
}

// POST /categories
func (h *Handler) create(c *gin.Context) {
	var dto CreateCategoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	cat, err := h.svc.Create(&dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Created(c, cat)
}

// PUT /categories/:id
func (h *Handler) update(c *gin.Context) {
	var dto UpdateCategoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	cat, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, cat)
}

// DELETE /categories/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.Err(c, err)
		return
	}
	response.NoContent(c)
}
