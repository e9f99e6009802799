// Package admin bundles the management surface: site statistics, post
// authoring with image upload, and manual notification runs.
package admin

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/middleware"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/modules/file"
	"github.com/quillspace/core/internal/modules/notify"
	"github.com/quillspace/core/internal/modules/post"
	"github.com/quillspace/core/internal/pkg/errs"
	"github.com/quillspace/core/internal/pkg/pagination"
	"github.com/quillspace/core/internal/pkg/response"
	"gorm.io/gorm"
)

// Stats is the site-wide dashboard snapshot. Every block comes from a single
// grouped count query.
type Stats struct {
	Posts       PostStats        `json:"posts"`
	Users       map[string]int64 `json:"users"`
	Comments    int64            `json:"comments"`
	Categories  int64            `json:"categories"`
	Tags        int64            `json:"tags"`
	Subscribers SubscriberStats  `json:"subscribers"`
}

type PostStats struct {
	Total     int64 `json:"total"`
	Published int64 `json:"published"`
	Drafts    int64 `json:"drafts"`
}

type SubscriberStats struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

type createPostForm struct {
	Title      string `form:"title"      binding:"required"`
	Content    string `form:"content"    binding:"required"`
	CategoryID string `form:"categoryId" binding:"required"`
	Slug       string `form:"slug"`
	Tags       string `form:"tags"`
	Status     string `form:"status"`
}

type updatePostForm struct {
	Title      *string `form:"title"`
	Content    *string `form:"content"`
	CategoryID *string `form:"categoryId"`
	Slug       *string `form:"slug"`
	Tags       *string `form:"tags"`
	Status     *string `form:"status"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Stats aggregates the dashboard counters.
func (s *Service) Stats() (*Stats, error) {
	var st Stats

	type statusCount struct {
		Status models.PostStatus
		Count  int64
	}
	var postRows []statusCount
	err := s.db.Model(&models.PostModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&postRows).Error
	if err != nil {
		return nil, errs.Internal(err)
	}
	for _, row := range postRows {
		st.Posts.Total += row.Count
		switch row.Status {
		case models.StatusPublished:
			st.Posts.Published = row.Count
		case models.StatusDraft:
			st.Posts.Drafts = row.Count
		}
	}

	type roleCount struct {
		Role  string
		Count int64
	}
	var userRows []roleCount
	err = s.db.Model(&models.UserModel{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&userRows).Error
	if err != nil {
		return nil, errs.Internal(err)
	}
	st.Users = map[string]int64{}
	for _, row := range userRows {
		st.Users[row.Role] = row.Count
	}

	if err := s.db.Model(&models.CommentModel{}).Count(&st.Comments).Error; err != nil {
		return nil, errs.Internal(err)
	}
	if err := s.db.Model(&models.CategoryModel{}).Count(&st.Categories).Error; err != nil {
		return nil, errs.Internal(err)
	}
	if err := s.db.Model(&models.TagModel{}).Count(&st.Tags).Error; err != nil {
		return nil, errs.Internal(err)
	}
	if err := s.db.Model(&models.SubscriberModel{}).Count(&st.Subscribers.Total).Error; err != nil {
		return nil, errs.Internal(err)
	}
	err = s.db.Model(&models.SubscriberModel{}).
		Where("is_subscribed = ?", true).
		Count(&st.Subscribers.Active).Error
	if err != nil {
		return nil, errs.Internal(err)
	}

	return &st, nil
}

type Handler struct {
	svc        *Service
	posts      *post.Service
	storage    *file.Storage
	dispatcher *notify.Dispatcher
}

func NewHandler(svc *Service, posts *post.Service, storage *file.Storage, dispatcher *notify.Dispatcher) *Handler {
	return &Handler{svc: svc, posts: posts, storage: storage, dispatcher: dispatcher}
}

// RegisterRoutes mounts the admin surface; the group is expected to already
// require the author or admin role, with stats admin-only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, adminMW gin.HandlerFunc) {
	rg.GET("/stats", adminMW, h.stats)

	g := rg.Group("/posts")
	g.GET("", h.listPosts)
	g.GET("/:id", h.getPost)
	g.POST("", h.createPost)
	g.PUT("/:id", h.updatePost)
	g.DELETE("/:id", h.deletePost)
	g.POST("/:id/notify", h.notifyNow)
}

// GET /admin/stats
func (h *Handler) stats(c *gin.Context) {
	st, err := h.svc.Stats()
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, st)
}

// GET /admin/posts
func (h *Handler) listPosts(c *gin.Context) {
	f := post.ListFilter{
		CategorySlug: c.Query("category"),
		TagSlug:      c.Query("tag"),
		Search:       c.Query("search"),
		Status:       models.PostStatus(c.Query("status")),
	}
	// Authors see only their own posts; admins see everything.
	if middleware.CurrentRole(c) != models.RoleAdmin {
		f.AuthorID = middleware.CurrentUserID(c)
	}
	items, pag, err := h.posts.List(pagination.FromContext(c), f)
	if err != nil {
		response.Err(c, errs.Internal(err))
		return
	}
	response.Paged(c, "posts", items, pag)
}

// GET /admin/posts/:id
func (h *Handler) getPost(c *gin.Context) {
	p, err := h.posts.GetByID(c.Param("id"))
	if err != nil {
		response.Err(c, err)
		return
	}
	if !middleware.CanMutate(p.AuthorID, middleware.CurrentUserID(c), middleware.CurrentRole(c)) {
		response.Forbidden(c, "you can only view your own posts here")
		return
	}
	response.OK(c, p)
}

// POST /admin/posts  (multipart: fields + optional featuredImage file)
func (h *Handler) createPost(c *gin.Context) {
	var form createPostForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, "title, content and categoryId are required")
		return
	}

	imageURI, err := h.saveImage(c)
	if err != nil {
		response.Err(c, err)
		return
	}

	dto := post.CreatePostDTO{
		Title:         form.Title,
		Content:       form.Content,
		CategoryID:    form.CategoryID,
		Slug:          form.Slug,
		Tags:          splitTags(form.Tags),
		Status:        form.Status,
		FeaturedImage: imageURI,
	}
	p, err := h.posts.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		if imageURI != "" {
			h.storage.Remove(imageURI)
		}
		response.Err(c, err)
		return
	}
	response.Created(c, p)
}

// PUT /admin/posts/:id  (multipart)
func (h *Handler) updatePost(c *gin.Context) {
	var form updatePostForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	imageURI, err := h.saveImage(c)
	if err != nil {
		response.Err(c, err)
		return
	}

	dto := post.UpdatePostDTO{
		Title:      form.Title,
		Content:    form.Content,
		CategoryID: form.CategoryID,
		Slug:       form.Slug,
		Status:     form.Status,
	}
	if form.Tags != nil {
		tags := splitTags(*form.Tags)
		dto.Tags = &tags
	}
	if imageURI != "" {
		dto.FeaturedImage = &imageURI
	}

	p, err := h.posts.Update(c.Param("id"), middleware.CurrentUserID(c), middleware.CurrentRole(c), &dto)
	if err != nil {
		if imageURI != "" {
			h.storage.Remove(imageURI)
		}
		response.Err(c, err)
		return
	}
	response.OK(c, p)
}

// DELETE /admin/posts/:id
func (h *Handler) deletePost(c *gin.Context) {
	if err := h.posts.Delete(c.Param("id"), middleware.CurrentUserID(c), middleware.CurrentRole(c)); err != nil {
		response.Err(c, err)
		return
	}
	response.NoContent(c)
}

// POST /admin/posts/:id/notify
//
// Runs a notification pass synchronously and reports per-recipient outcomes.
func (h *Handler) notifyNow(c *gin.Context) {
	p, err := h.posts.GetByID(c.Param("id"))
	if err != nil {
		response.Err(c, err)
		return
	}
	if !middleware.CanMutate(p.AuthorID, middleware.CurrentUserID(c), middleware.CurrentRole(c)) {
		response.Forbidden(c, "you can only notify for your own posts")
		return
	}
	if !p.IsPublished() {
		response.Conflict(c, "only published posts can be announced")
		return
	}

	report, err := h.dispatcher.NotifyNow(c.Request.Context(), &p.PostModel)
	if err != nil {
		response.Err(c, errs.Internal(err))
		return
	}
	response.OK(c, report)
}

func (h *Handler) saveImage(c *gin.Context) (string, error) {
	fh, err := c.FormFile("featuredImage")
	if err != nil {
		return "", nil
	}
	return h.storage.SaveImage(c, fh)
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
