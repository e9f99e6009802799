package comment

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/middleware"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/pkg/errs"
	"github.com/quillspace/core/internal/pkg/pagination"
	"github.com/quillspace/core/internal/pkg/response"
	"gorm.io/gorm"
)

type CreateCommentDTO struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
	PostID  string `json:"postId"  binding:"required"`
}

type UpdateCommentDTO struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Create attaches a comment to a published post.
func (s *Service) Create(authorID string, dto *CreateCommentDTO) (*models.CommentModel, error) {
	var post models.PostModel
	err := s.db.Where("id = ? AND status = ?", dto.PostID, models.StatusPublished).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("post not found")
		}
		return nil, errs.Internal(err)
	}

	cm := models.CommentModel{
		Content:  dto.Content,
		PostID:   dto.PostID,
		AuthorID: authorID,
	}
	if err := s.db.Create(&cm).Error; err != nil {
		return nil, errs.Internal(err)
	}
	return s.byID(cm.ID)
}

// ListByPost returns the post's comments, oldest first.
func (s *Service) ListByPost(postID string, q pagination.Query) ([]models.CommentModel, response.Pagination, error) {
	tx := s.db.Model(&models.CommentModel{}).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC")
	var items []models.CommentModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Update lets only the comment's author edit it, and marks it edited.
func (s *Service) Update(id, requesterID string, dto *UpdateCommentDTO) (*models.CommentModel, error) {
	cm, err := s.byID(id)
	if err != nil {
		return nil, err
	}
	if cm.AuthorID != requesterID {
		return nil, errs.Authorization("you can only edit your own comments")
	}

	updates := map[string]interface{}{
		"content":   dto.Content,
		"is_edited": true,
	}
	if err := s.db.Model(cm).Updates(updates).Error; err != nil {
		return nil, errs.Internal(err)
	}
	return s.byID(id)
}

// Delete allows the author or an admin.
func (s *Service) Delete(id, requesterID string, role models.Role) error {
	cm, err := s.byID(id)
	if err != nil {
		return err
	}
	if !middleware.CanMutate(cm.AuthorID, requesterID, role) {
		return errs.Authorization("you can only delete your own comments")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM comment_likes WHERE comment_model_id = ?", cm.ID).Error; err != nil {
			return errs.Internal(err)
		}
		if err := tx.Delete(cm).Error; err != nil {
			return errs.Internal(err)
		}
		return nil
	})
}

// ToggleLike flips the user's like on the comment, same semantics as posts.
func (s *Service) ToggleLike(commentID, userID string) (*LikeResult, error) {
	if _, err := s.byID(commentID); err != nil {
		return nil, err
	}

	var res LikeResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		del := tx.Exec(
			"DELETE FROM comment_likes WHERE comment_model_id = ? AND user_model_id = ?",
			commentID, userID,
		)
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			if err := tx.Exec(
				"INSERT INTO comment_likes (comment_model_id, user_model_id) VALUES (?, ?)",
				commentID, userID,
			).Error; err != nil {
				return err
			}
			res.Liked = true
		}
		return tx.Raw(
			"SELECT COUNT(*) FROM comment_likes WHERE comment_model_id = ?",
			commentID,
		).Scan(&res.LikeCount).Error
	})
	if err != nil {
		return nil, errs.Internal(err)
	}
	return &res, nil
}

func (s *Service) byID(id string) (*models.CommentModel, error) {
	var cm models.CommentModel
	if err := s.db.Preload("Author").First(&cm, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("comment not found")
		}
		return nil, errs.Internal(err)
	}
	return &cm, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/comments")
	g.GET("/post/:postId", h.listByPost)

	a := g.Group("", authMW)
	a.POST("", h.create)
	a.PUT("/:id", h.update)
	a.DELETE("/:id", h.delete)
	a.POST("/:id/like", h.toggleLike)
}

// GET /comments/post/:postId
func (h *Handler) listByPost(c *gin.Context) {
	items, pag, err := h.svc.ListByPost(c.Param("postId"), pagination.FromContext(c))
	if err != nil {
		response.Err(c, errs.Internal(err))
		return
	}
	response.Paged(c, "comments", items, pag)
}

// POST /comments
func (h *Handler) create(c *gin.Context) {
	var dto CreateCommentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "content and postId are required")
		return
	}
	cm, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Created(c, cm)
}

// PUT /comments/:id
func (h *Handler) update(c *gin.Context) {
	var dto UpdateCommentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "content is required")
		return
	}
	cm, err := h.svc.Update(c.Param("id"), middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, cm)
}

// DELETE /comments/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id"), middleware.CurrentUserID(c), middleware.CurrentRole(c)); err != nil {
		response.Err(c, err)
		return
	}
	response.NoContent(c)
}

// POST /comments/:id/like
func (h *Handler) toggleLike(c *gin.Context) {
	res, err := h.svc.ToggleLike(c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, res)
}
