package subscriber

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/database"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/pkg/errs"
	"github.com/quillspace/core/internal/pkg/pagination"
	"github.com/quillspace/core/internal/pkg/response"
	"gorm.io/gorm"
)

type SubscribeDTO struct {
	Email string `json:"email" binding:"required,email"`
}

// Welcomer is the piece of the notification dispatcher subscribe needs.
type Welcomer interface {
	SendWelcome(email string)
}

type Service struct {
	db       *gorm.DB
	welcomer Welcomer
}

func NewService(db *gorm.DB, welcomer Welcomer) *Service {
	return &Service{db: db, welcomer: welcomer}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Subscribe registers the email or reactivates a lapsed subscription. An
// email that is already subscribed is a conflict. The welcome email is
// best-effort and never affects the outcome.
func (s *Service) Subscribe(email string) (*models.SubscriberModel, error) {
	email = normalizeEmail(email)

	var existing models.SubscriberModel
	err := s.db.Where("email = ?", email).First(&existing).Error
	switch {
	case err == nil:
		if existing.IsSubscribed {
			return nil, errs.Conflict("email is already subscribed")
		}
		// Resubscribe: fresh SubscribedAt, cleared UnsubscribedAt.
		updates := map[string]interface{}{
			"is_subscribed":   true,
			"subscribed_at":   time.Now(),
			"unsubscribed_at": nil,
		}
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, errs.Internal(err)
		}
		if err := s.db.First(&existing, "id = ?", existing.ID).Error; err != nil {
			return nil, errs.Internal(err)
		}
		s.sendWelcome(email)
		return &existing, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		sub := models.SubscriberModel{
			Email:        email,
			IsSubscribed: true,
			SubscribedAt: time.Now(),
		}
		if err := s.db.Create(&sub).Error; err != nil {
			if database.IsDuplicate(err) {
				return nil, errs.Conflict("email is already subscribed")
			}
			return nil, errs.Internal(err)
		}
		s.sendWelcome(email)
		return &sub, nil

	default:
		return nil, errs.Internal(err)
	}
}

// Unsubscribe deactivates an active subscription. Unknown emails are not
// found; already-inactive ones are a conflict.
func (s *Service) Unsubscribe(email string) (*models.SubscriberModel, error) {
	email = normalizeEmail(email)

	var sub models.SubscriberModel
	if err := s.db.Where("email = ?", email).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("subscriber not found")
		}
		return nil, errs.Internal(err)
	}
	if !sub.IsSubscribed {
		return nil, errs.Conflict("email is already unsubscribed")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"is_subscribed":   false,
		"unsubscribed_at": now,
	}
	if err := s.db.Model(&sub).Updates(updates).Error; err != nil {
		return nil, errs.Internal(err)
	}
	sub.IsSubscribed = false
	sub.UnsubscribedAt = &now
	return &sub, nil
}

func (s *Service) List(q pagination.Query) ([]models.SubscriberModel, response.Pagination, error) {
	tx := s.db.Model(&models.SubscriberModel{}).Order("subscribed_at DESC")
	var items []models.SubscriberModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) Delete(id string) error {
	res := s.db.Delete(&models.SubscriberModel{}, "id = ?", id)
	if res.Error != nil {
		return errs.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("subscriber not found")
	}
	return nil
}

func (s *Service) sendWelcome(email string) {
	if s.welcomer != nil {
		s.welcomer.SendWelcome(email)
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/subscribers")
	g.POST("/subscribe", h.subscribe)
	g.POST("/unsubscribe", h.unsubscribe)

	a := g.Group("", authMW, adminMW)
	a.GET("", h.list)
	a.DELETE("/:id", h.delete)
}

// RegisterAdminRoutes mounts the management endpoints; the group is expected
// to already require the admin role.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/subscribers")
	g.GET("", h.list)
	g.DELETE("/:id", h.delete)
}

// POST /subscribers/subscribe
func (h *Handler) subscribe(c *gin.Context) {
	var dto SubscribeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "a valid email is required")
		return
	}
	sub, err := h.svc.Subscribe(dto.Email)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Created(c, sub)
}

// POST /subscribers/unsubscribe
func (h *Handler) unsubscribe(c *gin.Context) {
	var dto SubscribeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "a valid email is required")
		return
	}
	sub, err := h.svc.Unsubscribe(dto.Email)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, sub)
}

// GET /admin/subscribers
func (h *Handler) list(c *gin.Context) {
	items, pag, err := h.svc.List(pagination.FromContext(c))
	if err != nil {
		response.Err(c, errs.Internal(err))
		return
	}
	response.Paged(c, "subscribers", items, pag)
}

// DELETE /admin/subscribers/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.Err(c, err)
		return
	}
	response.NoContent(c)
}
