package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/config"
	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/modules/notify"
	"github.com/quillspace/core/internal/pkg/jwt"
	"github.com/quillspace/core/internal/pkg/mail"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingSender struct {
	mu       sync.Mutex
	newPosts []mail.NewPostData
	welcomes []string
}

func (r *recordingSender) SendNewPost(to string, data mail.NewPostData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newPosts = append(r.newPosts, data)
	return nil
}

func (r *recordingSender) SendWelcome(to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcomes = append(r.welcomes, to)
	return nil
}

func newTestApp(t *testing.T) (*App, *recordingSender) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwt.SetSecret("test-secret")

	dsn := fmt.Sprintf("file:app-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = gdb.AutoMigrate(
		&models.UserModel{},
		&models.CategoryModel{},
		&models.TagModel{},
		&models.PostModel{},
		&models.CommentModel{},
		&models.SubscriberModel{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	sender := &recordingSender{}
	log := zap.NewNop()
	a := &App{
		cfg: &config.AppConfig{
			Env:       "test",
			WebURL:    "https://blog.example.com",
			StaticDir: t.TempDir(),
			JWTSecret: "test-secret",
		},
		router:     gin.New(),
		db:         gdb,
		logger:     log,
		dispatcher: notify.NewDispatcher(gdb, sender, "https://blog.example.com", log),
	}
	a.registerRoutes()
	return a, sender
}

func doJSON(t *testing.T, a *App, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestPublishScenario(t *testing.T) {
	a, sender := newTestApp(t)

	// An author registers.
	w := doJSON(t, a, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Ann", "email": "ann@example.com", "password": "password1", "role": "author",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", w.Code, w.Body.String())
	}
	var reg struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, w, &reg)

	// A reader subscribes.
	w = doJSON(t, a, http.MethodPost, "/api/subscribers/subscribe", "", gin.H{"email": "fan@example.com"})
	if w.Code != http.StatusCreated {
		t.Fatalf("subscribe = %d: %s", w.Code, w.Body.String())
	}

	// The author creates a category and a draft.
	w = doJSON(t, a, http.MethodPost, "/api/categories", reg.Token, gin.H{"name": "Tech"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create category = %d: %s", w.Code, w.Body.String())
	}
	var cat struct {
		ID string `json:"id"`
	}
	decode(t, w, &cat)

	w = doJSON(t, a, http.MethodPost, "/api/posts", reg.Token, gin.H{
		"title": "Hello World", "content": "# Hi\n\nfirst post", "categoryId": cat.ID,
		"tags": []string{"Go"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create post = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	decode(t, w, &created)
	if created.Slug != "hello-world" {
		t.Fatalf("slug = %q, want hello-world", created.Slug)
	}

	// Drafts stay invisible to the public.
	w = doJSON(t, a, http.MethodGet, "/api/public/posts/hello-world", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("draft fetch = %d, want 404", w.Code)
	}
	if len(sender.newPosts) != 0 {
		t.Fatalf("dispatched %d notifications before publish", len(sender.newPosts))
	}

	// Publishing flips the switch and notifies the subscriber exactly once.
	w = doJSON(t, a, http.MethodPatch, "/api/posts/"+created.ID+"/publish", reg.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("publish = %d: %s", w.Code, w.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.dispatcher.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	sender.mu.Lock()
	dispatched := append([]mail.NewPostData(nil), sender.newPosts...)
	sender.mu.Unlock()
	if len(dispatched) != 1 {
		t.Fatalf("dispatched %d notifications, want exactly 1", len(dispatched))
	}
	if dispatched[0].Title != "Hello World" || dispatched[0].URL != "https://blog.example.com/posts/hello-world" {
		t.Fatalf("notification = %+v, want title and slug URL", dispatched[0])
	}

	// Now the post is public, with rendered HTML.
	w = doJSON(t, a, http.MethodGet, "/api/public/posts/hello-world", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public fetch = %d: %s", w.Code, w.Body.String())
	}
	var detail struct {
		HTML string `json:"html"`
	}
	decode(t, w, &detail)
	if detail.HTML == "" {
		t.Fatal("public detail must include rendered HTML")
	}
}

func TestErrorEnvelopeShape(t *testing.T) {
	a, _ := newTestApp(t)

	w := doJSON(t, a, http.MethodPost, "/api/subscribers/subscribe", "", gin.H{"email": "dupe@example.com"})
	if w.Code != http.StatusCreated {
		t.Fatalf("subscribe = %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, a, http.MethodPost, "/api/subscribers/subscribe", "", gin.H{"email": "dupe@example.com"})
	if w.Code != http.StatusConflict {
		t.Fatalf("double subscribe = %d, want 409", w.Code)
	}
	var envelope struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
	}
	decode(t, w, &envelope)
	if envelope.Message == "" || envelope.Kind != "conflict" {
		t.Fatalf("envelope = %+v, want message plus kind=conflict", envelope)
	}
}

func TestRoleGates(t *testing.T) {
	a, _ := newTestApp(t)

	w := doJSON(t, a, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Rex", "email": "rex@example.com", "password": "password1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", w.Code, w.Body.String())
	}
	var reg struct {
		Token string `json:"token"`
	}
	decode(t, w, &reg)

	// Readers cannot author posts.
	w = doJSON(t, a, http.MethodPost, "/api/posts", reg.Token, gin.H{
		"title": "Nope", "content": "x", "categoryId": "y",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("reader create post = %d, want 403", w.Code)
	}

	// Anonymous requests to protected routes are unauthorized.
	w = doJSON(t, a, http.MethodPost, "/api/posts", "", gin.H{
		"title": "Nope", "content": "x", "categoryId": "y",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create post = %d, want 401", w.Code)
	}

	// Stats are admin-only.
	w = doJSON(t, a, http.MethodGet, "/api/admin/stats", reg.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("reader stats = %d, want 403", w.Code)
	}

	// Readers cannot manage the taxonomy either.
	w = doJSON(t, a, http.MethodPost, "/api/categories", reg.Token, gin.H{"name": "Reader Made"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("reader create category = %d, want 403", w.Code)
	}
	w = doJSON(t, a, http.MethodPost, "/api/tags", reg.Token, gin.H{"name": "reader-tag"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("reader create tag = %d, want 403", w.Code)
	}

	// Subscriber management is admin-only.
	w = doJSON(t, a, http.MethodGet, "/api/subscribers", reg.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("reader list subscribers = %d, want 403", w.Code)
	}

	// Promoted to admin, the same surface opens up.
	if err := a.db.Model(&models.UserModel{}).Where("email = ?", "rex@example.com").
		Update("role", models.RoleAdmin).Error; err != nil {
		t.Fatalf("promote: %v", err)
	}
	w = doJSON(t, a, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "rex@example.com", "password": "password1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &reg)
	w = doJSON(t, a, http.MethodGet, "/api/subscribers", reg.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin list subscribers = %d: %s", w.Code, w.Body.String())
	}
}

func TestPaginationEnvelope(t *testing.T) {
	a, _ := newTestApp(t)

	w := doJSON(t, a, http.MethodGet, "/api/posts?page=2&limit=5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d: %s", w.Code, w.Body.String())
	}
	var list struct {
		Page       int               `json:"page"`
		TotalPages int               `json:"totalPages"`
		Total      int64             `json:"total"`
		Posts      []json.RawMessage `json:"posts"`
	}
	decode(t, w, &list)
	if list.Page != 2 || list.Total != 0 || len(list.Posts) != 0 {
		t.Fatalf("list = %+v, want empty page 2", list)
	}
}
