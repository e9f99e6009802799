package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/database"
	"github.com/quillspace/core/internal/middleware"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/pkg/errs"
	"github.com/quillspace/core/internal/pkg/jwt"
	"github.com/quillspace/core/internal/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 7 * 24 * time.Hour

type RegisterDTO struct {
	Name     string `json:"name"     binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

type LoginDTO struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string            `json:"token"`
	User  *models.UserModel `json:"user"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Register creates a user and signs a token. Self-registration is limited to
// the reader and author roles; admins are promoted out of band.
func (s *Service) Register(dto *RegisterDTO) (*authResponse, error) {
	role := models.RoleReader
	if dto.Role != "" {
		role = models.Role(dto.Role)
		if role == models.RoleAdmin || !role.Valid() {
			return nil, errs.Validation("role must be reader or author")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Internal(err)
	}

	user := models.UserModel{
		Name:     dto.Name,
		Email:    strings.ToLower(strings.TrimSpace(dto.Email)),
		Password: string(hash),
		Role:     role,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, errs.Conflict("an account with this email already exists")
		}
		return nil, errs.Internal(err)
	}

	return s.issue(&user)
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(dto *LoginDTO) (*authResponse, error) {
	email := strings.ToLower(strings.TrimSpace(dto.Email))

	var user models.UserModel
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Authentication("invalid email or password")
		}
		return nil, errs.Internal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)); err != nil {
		return nil, errs.Authentication("invalid email or password")
	}

	return s.issue(&user)
}

// Me loads the authenticated user's profile.
func (s *Service) Me(userID string) (*models.UserModel, error) {
	var user models.UserModel
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("user not found")
		}
		return nil, errs.Internal(err)
	}
	return &user, nil
}

func (s *Service) issue(user *models.UserModel) (*authResponse, error) {
	token, err := jwt.Sign(user.ID, string(user.Role), tokenTTL)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return &authResponse{Token: token, User: user}, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.GET("/me", authMW, h.me)
}

// POST /auth/register
func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "name, email and a password of at least 8 characters are required")
		return
	}
	res, err := h.svc.Register(&dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Created(c, res)
}

// POST /auth/login
func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}
	res, err := h.svc.Login(&dto)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, res)
}

// GET /auth/me
func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.Me(middleware.CurrentUserID(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, user)
}
