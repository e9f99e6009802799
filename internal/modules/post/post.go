package post

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/database"
	"github.com/quillspace/core/internal/middleware"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/modules/tag"
	"github.com/quillspace/core/internal/pkg/errs"
	"github.com/quillspace/core/internal/pkg/markdown"
	"github.com/quillspace/core/internal/pkg/pagination"
	"github.com/quillspace/core/internal/pkg/response"
	"github.com/quillspace/core/internal/pkg/slug"
	"gorm.io/gorm"
)

type CreatePostDTO struct {
	Title         string   `json:"title"      binding:"required"`
	Content       string   `json:"content"    binding:"required"`
	CategoryID    string   `json:"categoryId" binding:"required"`
	Slug          string   `json:"slug"`
	Tags          []string `json:"tags"`
	Status        string   `json:"status"`
	FeaturedImage string   `json:"featuredImage"`
}

type UpdatePostDTO struct {
	Title         *string   `json:"title"`
	Content       *string   `json:"content"`
	CategoryID    *string   `json:"categoryId"`
	Slug          *string   `json:"slug"`
	Tags          *[]string `json:"tags"`
	Status        *string   `json:"status"`
	FeaturedImage *string   `json:"featuredImage"`
}

// ListFilter narrows post listings. Zero values mean "no constraint".
type ListFilter struct {
	Status       models.PostStatus
	CategorySlug string
	TagSlug      string
	AuthorID     string
	Search       string
}

// Notifier is the dispatch capability publish transitions need.
type Notifier interface {
	DispatchNewPost(post *models.PostModel)
}

// Detail is a post with its derived read-side fields.
type Detail struct {
	models.PostModel
	HTML      string `json:"html,omitempty"`
	LikeCount int64  `json:"likeCount"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

type Service struct {
	db       *gorm.DB
	tags     *tag.Service
	notifier Notifier
}

func NewService(db *gorm.DB, tags *tag.Service, notifier Notifier) *Service {
	return &Service{db: db, tags: tags, notifier: notifier}
}

func parseStatus(raw string) (models.PostStatus, error) {
	switch models.PostStatus(raw) {
	case "", models.StatusDraft:
		return models.StatusDraft, nil
	case models.StatusPublished:
		return models.StatusPublished, nil
	}
	return "", errs.Validation("status must be draft or published")
}

// Create inserts a post owned by authorID. The slug derives from the title
// unless one is supplied explicitly. A post created directly as published
// notifies subscribers immediately.
func (s *Service) Create(authorID string, dto *CreatePostDTO) (*models.PostModel, error) {
	status, err := parseStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	source := dto.Slug
	if source == "" {
		source = dto.Title
	}
	postSlug := slug.Make(source)
	if postSlug == "" {
		return nil, errs.Validation("title must contain letters or digits")
	}
	// The unique index is the authoritative guard; this pre-check exists for
	// a friendly error before the write.
	if err := s.slugAvailable(postSlug, ""); err != nil {
		return nil, err
	}
	if err := s.categoryExists(dto.CategoryID); err != nil {
		return nil, err
	}
	tags, err := s.tags.GetOrCreate(dto.Tags)
	if err != nil {
		return nil, err
	}

	p := models.PostModel{
		Title:         dto.Title,
		Content:       dto.Content,
		Slug:          postSlug,
		Status:        status,
		FeaturedImage: dto.FeaturedImage,
		CategoryID:    dto.CategoryID,
		AuthorID:      authorID,
		Tags:          tags,
	}
	if err := s.db.Create(&p).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, errs.Conflict("a post with this slug already exists")
		}
		return nil, errs.Internal(err)
	}

	if p.IsPublished() {
		s.notify(&p)
	}
	return s.byID(p.ID)
}

// Update applies partial changes. Changing the title regenerates the slug.
// The draft→published transition is the only one that notifies: republishing
// an already-published post or unpublishing never does.
func (s *Service) Update(id, requesterID string, role models.Role, dto *UpdatePostDTO) (*models.PostModel, error) {
	p, err := s.byID(id)
	if err != nil {
		return nil, err
	}
	if !middleware.CanMutate(p.AuthorID, requesterID, role) {
		return nil, errs.Authorization("you can only modify your own posts")
	}

	wasPublished := p.IsPublished()
	updates := map[string]interface{}{}

	if dto.Title != nil && *dto.Title != p.Title {
		updates["title"] = *dto.Title
	}
	// The slug stays put on title edits so published URLs keep working;
	// it only moves when the caller supplies one explicitly.
	if dto.Slug != nil {
		updates["slug"] = slug.Make(*dto.Slug)
	}
	if newSlug, ok := updates["slug"].(string); ok {
		if newSlug == "" {
			return nil, errs.Validation("slug must contain letters or digits")
		}
		if newSlug == p.Slug {
			delete(updates, "slug")
		} else if err := s.slugAvailable(newSlug, p.ID); err != nil {
			return nil, err
		}
	}
	if dto.Content != nil {
		updates["content"] = *dto.Content
	}
	if dto.CategoryID != nil && *dto.CategoryID != p.CategoryID {
		if err := s.categoryExists(*dto.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *dto.CategoryID
	}
	if dto.FeaturedImage != nil {
		updates["featured_image"] = *dto.FeaturedImage
	}
	if dto.Status != nil {
		status, err := parseStatus(*dto.Status)
		if err != nil {
			return nil, err
		}
		updates["status"] = status
	}

	if len(updates) > 0 {
		if err := s.db.Model(p).Updates(updates).Error; err != nil {
			if database.IsDuplicate(err) {
				return nil, errs.Conflict("a post with this slug already exists")
			}
			return nil, errs.Internal(err)
		}
	}
	if dto.Tags != nil {
		tags, err := s.tags.GetOrCreate(*dto.Tags)
		if err != nil {
			return nil, err
		}
		if err := s.db.Model(p).Association("Tags").Replace(tags); err != nil {
			return nil, errs.Internal(err)
		}
	}

	p, err = s.byID(id)
	if err != nil {
		return nil, err
	}
	if !wasPublished && p.IsPublished() {
		s.notify(p)
	}
	return p, nil
}

// TogglePublish flips the publication status. Draft to published notifies.
func (s *Service) TogglePublish(id, requesterID string, role models.Role) (*models.PostModel, error) {
	p, err := s.byID(id)
	if err != nil {
		return nil, err
	}
	if !middleware.CanMutate(p.AuthorID, requesterID, role) {
		return nil, errs.Authorization("you can only modify your own posts")
	}

	next := models.StatusPublished
	if p.IsPublished() {
		next = models.StatusDraft
	}
	if err := s.db.Model(p).Update("status", next).Error; err != nil {
		return nil, errs.Internal(err)
	}
	p.Status = next

	if next == models.StatusPublished {
		s.notify(p)
	}
	return p, nil
}

func (s *Service) Delete(id, requesterID string, role models.Role) error {
	p, err := s.byID(id)
	if err != nil {
		return err
	}
	if !middleware.CanMutate(p.AuthorID, requesterID, role) {
		return errs.Authorization("you can only delete your own posts")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM post_tags WHERE post_model_id = ?", p.ID).Error; err != nil {
			return errs.Internal(err)
		}
		if err := tx.Exec("DELETE FROM post_likes WHERE post_model_id = ?", p.ID).Error; err != nil {
			return errs.Internal(err)
		}
		if err := tx.Where("post_id = ?", p.ID).Delete(&models.CommentModel{}).Error; err != nil {
			return errs.Internal(err)
		}
		if err := tx.Delete(p).Error; err != nil {
			return errs.Internal(err)
		}
		return nil
	})
}

// ToggleLike flips the user's like on the post and returns the new state.
// Implemented as delete-then-insert inside one transaction so double taps
// always land on one of the two states.
func (s *Service) ToggleLike(postID, userID string) (*LikeResult, error) {
	if _, err := s.byID(postID); err != nil {
		return nil, err
	}

	var res LikeResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		del := tx.Exec(
			"DELETE FROM post_likes WHERE post_model_id = ? AND user_model_id = ?",
			postID, userID,
		)
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			if err := tx.Exec(
				"INSERT INTO post_likes (post_model_id, user_model_id) VALUES (?, ?)",
				postID, userID,
			).Error; err != nil {
				return err
			}
			res.Liked = true
		}
		return tx.Raw(
			"SELECT COUNT(*) FROM post_likes WHERE post_model_id = ?",
			postID,
		).Scan(&res.LikeCount).Error
	})
	if err != nil {
		return nil, errs.Internal(err)
	}
	return &res, nil
}

// List returns posts matching the filter, newest first.
func (s *Service) List(q pagination.Query, f ListFilter) ([]models.PostModel, response.Pagination, error) {
	tx := s.db.Model(&models.PostModel{}).
		Preload("Category").
		Preload("Tags").
		Preload("Author").
		Order("posts.created_at DESC")

	if f.Status != "" {
		tx = tx.Where("posts.status = ?", f.Status)
	}
	if f.AuthorID != "" {
		tx = tx.Where("posts.author_id = ?", f.AuthorID)
	}
	if f.CategorySlug != "" {
		tx = tx.Joins("JOIN categories ON categories.id = posts.category_id").
			Where("categories.slug = ?", f.CategorySlug)
	}
	if f.TagSlug != "" {
		tx = tx.Joins("JOIN post_tags ON post_tags.post_model_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_model_id").
			Where("tags.slug = ?", f.TagSlug)
	}
	if f.Search != "" {
		like := "%" + strings.TrimSpace(f.Search) + "%"
		tx = tx.Where("posts.title LIKE ? OR posts.content LIKE ?", like, like)
	}

	var items []models.PostModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// BySlugPublished returns a published post with rendered HTML and like count.
func (s *Service) BySlugPublished(slugStr string) (*Detail, error) {
	var p models.PostModel
	err := s.db.
		Preload("Category").
		Preload("Tags").
		Preload("Author").
		Where("slug = ? AND status = ?", slugStr, models.StatusPublished).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("post not found")
		}
		return nil, errs.Internal(err)
	}

	count, err := s.likeCount(p.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{
		PostModel: p,
		HTML:      markdown.Render(p.Content),
		LikeCount: count,
	}, nil
}

// GetByID returns a post regardless of status, with its like count.
func (s *Service) GetByID(id string) (*Detail, error) {
	p, err := s.byID(id)
	if err != nil {
		return nil, err
	}
	count, err := s.likeCount(p.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{PostModel: *p, LikeCount: count}, nil
}

// GetVisible resolves idOrSlug as id first, then slug. Drafts are visible
// only to their owner or an admin.
func (s *Service) GetVisible(idOrSlug, requesterID string, role models.Role) (*Detail, error) {
	var p models.PostModel
	err := s.db.
		Preload("Category").
		Preload("Tags").
		Preload("Author").
		Where("id = ? OR slug = ?", idOrSlug, idOrSlug).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("post not found")
		}
		return nil, errs.Internal(err)
	}
	if !p.IsPublished() && !middleware.CanMutate(p.AuthorID, requesterID, role) {
		return nil, errs.NotFound("post not found")
	}

	count, err := s.likeCount(p.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{
		PostModel: p,
		HTML:      markdown.Render(p.Content),
		LikeCount: count,
	}, nil
}

func (s *Service) likeCount(postID string) (int64, error) {
	var count int64
	err := s.db.Raw(
		"SELECT COUNT(*) FROM post_likes WHERE post_model_id = ?",
		postID,
	).Scan(&count).Error
	if err != nil {
		return 0, errs.Internal(err)
	}
	return count, nil
}

func (s *Service) byID(id string) (*models.PostModel, error) {
	var p models.PostModel
	err := s.db.
		Preload("Category").
		Preload("Tags").
		Preload("Author").
		First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("post not found")
		}
		return nil, errs.Internal(err)
	}
	return &p, nil
}

// slugAvailable reports a conflict when another post already holds the slug.
// excludeID lets an update keep its own slug.
func (s *Service) slugAvailable(slugStr, excludeID string) error {
	tx := s.db.Model(&models.PostModel{}).Where("slug = ?", slugStr)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return errs.Internal(err)
	}
	if count > 0 {
		return errs.Conflict("a post with this slug already exists")
	}
	return nil
}

func (s *Service) categoryExists(id string) error {
	var count int64
	if err := s.db.Model(&models.CategoryModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errs.Internal(err)
	}
	if count == 0 {
		return errs.NotFound("category not found")
	}
	return nil
}

func (s *Service) notify(p *models.PostModel) {
	if s.notifier != nil {
		s.notifier.DispatchNewPost(p)
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the authoring surface. authMW authenticates;
// authorMW additionally requires the author or admin role.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, authorMW gin.HandlerFunc) {
	g := rg.Group("/posts")
	g.GET("", h.listPublished)
	g.GET("/:id", h.get)

	a := g.Group("", authMW)
	a.POST("/:id/like", h.toggleLike)

	w := a.Group("", authorMW)
	w.GET("/my-posts", h.listMine)
	w.POST("", h.create)
	w.PUT("/:id", h.update)
	w.PATCH("/:id/publish", h.togglePublish)
	w.DELETE("/:id", h.delete)
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/posts")
	g.GET("", h.listPublished)
	g.GET("/:slug", h.bySlug)
}

func (h *Handler) filterFromQuery(c *gin.Context) ListFilter {
	return ListFilter{
		CategorySlug: c.Query("category"),
		TagSlug:      c.Query("tag"),
		AuthorID:     c.Query("author"),
		Search:       c.Query("search"),
	}
}

// GET /posts
func (h *Handler) listPublished(c *gin.Context) {
	f := h.filterFromQuery(c)
	f.Status = models.StatusPublished
	items, pag, err := h.svc.List(pagination.FromContext(c), f)
	if err != nil {
		response.Err(c, errs.Internal(err))
		return
	}
	response.Paged(c, "posts", items, pag)
}

// GET /posts/my-posts
func (h *Handler) listMine(c *gin.Context) {
	f := h.filterFromQuery(c)
	f.AuthorID = middleware.CurrentUserID(c)
	if raw := c.Query("status"); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			response.Err(c, err)
			return
		}
		f.Status = status
	}
	items, pag, err := h.svc.List(pagination.FromContext(c), f)
	if err != nil {
		response.Err(c, errs.Internal(err))
		return
	}
	response.Paged(c, "posts", items, pag)
}

// GET /public/posts/:slug
func (h *Handler) bySlug(c *gin.Context) {
	p, err := h.svc.BySlugPublished(c.Param("slug"))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, p)
}

// GET /posts/:id
func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.GetVisible(c.Param("id"), middleware.CurrentUserID(c), middleware.CurrentRole(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, p)
}

// POST /posts
func (h *Handler) create(c *gin.Context) {
	var dto CreatePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "title, content and categoryId are required")
		return
	}
	p, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Created(c, p)
}

// PUT /posts/:id
func (h *Handler) update(c *gin.Context) {
	var dto UpdatePostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	p, err := h.svc.Update(c.Param("id"), middleware.CurrentUserID(c), middleware.CurrentRole(c), &dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, p)
}

// PATCH /posts/:id/publish
func (h *Handler) togglePublish(c *gin.Context) {
	p, err := h.svc.TogglePublish(c.Param("id"), middleware.CurrentUserID(c), middleware.CurrentRole(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, p)
}

// DELETE /posts/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id"), middleware.CurrentUserID(c), middleware.CurrentRole(c)); err != nil {
		response.Err(c, err)
		return
	}
	response.NoContent(c)
}

// POST /posts/:id/like
func (h *Handler) toggleLike(c *gin.Context) {
	res, err := h.svc.ToggleLike(c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, res)
}
