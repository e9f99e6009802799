package app

import (
	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/middleware"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/modules/admin"
	"github.com/quillspace/core/internal/modules/auth"
	"github.com/quillspace/core/internal/modules/category"
	"github.com/quillspace/core/internal/modules/comment"
	"github.com/quillspace/core/internal/modules/file"
	"github.com/quillspace/core/internal/modules/post"
	"github.com/quillspace/core/internal/modules/subscriber"
	"github.com/quillspace/core/internal/modules/tag"
	"github.com/quillspace/core/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router
	db := a.db

	authMW := middleware.Auth()
	authorMW := middleware.RequireRoles(models.RoleAuthor, models.RoleAdmin)
	adminMW := middleware.RequireRoles(models.RoleAdmin)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		response.BadRequest(c, "method not allowed")
	})

	// Shared services
	storage := file.NewStorage(a.cfg.StaticDir)
	tagSvc := tag.NewService(db)
	categorySvc := category.NewService(db)
	postSvc := post.NewService(db, tagSvc, a.dispatcher)
	commentSvc := comment.NewService(db)
	subscriberSvc := subscriber.NewService(db, a.dispatcher)
	authSvc := auth.NewService(db)
	adminSvc := admin.NewService(db)

	authH := auth.NewHandler(authSvc)
	postH := post.NewHandler(postSvc)
	categoryH := category.NewHandler(categorySvc)
	tagH := tag.NewHandler(tagSvc)
	commentH := comment.NewHandler(commentSvc)
	subscriberH := subscriber.NewHandler(subscriberSvc)
	fileH := file.NewHandler(storage)
	adminH := admin.NewHandler(adminSvc, postSvc, storage, a.dispatcher)

	// Uploads live outside the API prefix.
	fileH.RegisterRoutes(r)

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth())

	authH.RegisterRoutes(api, authMW)
	postH.RegisterRoutes(api, authMW, authorMW)
	categoryH.RegisterRoutes(api, authMW, authorMW, adminMW)
	tagH.RegisterRoutes(api, authMW, authorMW, adminMW)
	commentH.RegisterRoutes(api, authMW)
	subscriberH.RegisterRoutes(api, authMW, adminMW)

	// Read-only public surface.
	public := api.Group("/public")
	postH.RegisterPublicRoutes(public)
	categoryH.RegisterPublicRoutes(public)
	tagH.RegisterPublicRoutes(public)

	// Management surface: authors and admins, with admin-only parts gated
	// inside the handlers.
	adm := api.Group("/admin", authMW, authorMW)
	adminH.RegisterRoutes(adm, adminMW)
	categoryH.RegisterAdminRoutes(adm, adminMW)
	tagH.RegisterAdminRoutes(adm, adminMW)

	// Subscriber management is admin-only.
	admOnly := api.Group("/admin", authMW, adminMW)
	subscriberH.RegisterAdminRoutes(admOnly)
}
