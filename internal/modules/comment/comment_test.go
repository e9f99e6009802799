package comment

import (
	"fmt"
	"testing"
	"time"

	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/pkg/errs"
	"github.com/quillspace/core/internal/pkg/pagination"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type commentFixture struct {
	db     *gorm.DB
	svc    *Service
	author models.UserModel
	reader models.UserModel
	post   models.PostModel
	draft  models.PostModel
}

func setupCommentTest(t *testing.T) *commentFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:comment-%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &commentFixture{
		db:     gdb,
		svc:    NewService(gdb),
		author: models.UserModel{Name: "Ann", Email: "ann@example.com", Password: "x", Role: models.RoleAuthor},
		reader: models.UserModel{Name: "Rex", Email: "rex@example.com", Password: "x", Role: models.RoleReader},
	}
	for _, u := range []*models.UserModel{&f.author, &f.reader} {
		if err := gdb.Create(u).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	cat := models.CategoryModel{Name: "Tech", Slug: "tech"}
	if err := gdb.Create(&cat).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	f.post = models.PostModel{
		Title: "Open", Content: "body", Slug: "open",
		Status: models.StatusPublished, CategoryID: cat.ID, AuthorID: f.author.ID,
	}
	f.draft = models.PostModel{
		Title: "Closed", Content: "body", Slug: "closed",
		Status: models.StatusDraft, CategoryID: cat.ID, AuthorID: f.author.ID,
	}
	for _, p := range []*models.PostModel{&f.post, &f.draft} {
		if err := gdb.Create(p).Error; err != nil {
			t.Fatalf("create post: %v", err)
		}
	}
	return f
}

func TestCreateCommentOnPublishedPost(t *testing.T) {
	f := setupCommentTest(t)

	cm, err := f.svc.Create(f.reader.ID, &CreateCommentDTO{Content: "great read", PostID: f.post.ID})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if cm.IsEdited {
		t.Fatal("fresh comment must not be marked edited")
	}
	if cm.Author == nil || cm.Author.Name != "Rex" {
		t.Fatalf("author not preloaded: %+v", cm.Author)
	}
}

func TestCreateCommentOnDraftIsNotFound(t *testing.T) {
	f := setupCommentTest(t)

	_, err := f.svc.Create(f.reader.ID, &CreateCommentDTO{Content: "sneaky", PostID: f.draft.ID})
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("error = %v, want not_found for draft target", err)
	}
}

func TestUpdateCommentOwnerOnly(t *testing.T) {
	f := setupCommentTest(t)

	cm, err := f.svc.Create(f.reader.ID, &CreateCommentDTO{Content: "first", PostID: f.post.ID})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}

	updated, err := f.svc.Update(cm.ID, f.reader.ID, &UpdateCommentDTO{Content: "first, edited"})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if !updated.IsEdited || updated.Content != "first, edited" {
		t.Fatalf("updated = %+v, want edited content flagged", updated)
	}

	// Not even the post's author may edit someone else's comment.
	_, err = f.svc.Update(cm.ID, f.author.ID, &UpdateCommentDTO{Content: "hijack"})
	if !errs.IsKind(err, errs.KindAuthorization) {
		t.Fatalf("error = %v, want authorization", err)
	}
}

func TestDeleteCommentOwnerOrAdmin(t *testing.T) {
	f := setupCommentTest(t)

	cm, err := f.svc.Create(f.reader.ID, &CreateCommentDTO{Content: "temp", PostID: f.post.ID})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if err := f.svc.Delete(cm.ID, f.author.ID, models.RoleAuthor); !errs.IsKind(err, errs.KindAuthorization) {
		t.Fatalf("non-owner delete error = %v, want authorization", err)
	}
	if err := f.svc.Delete(cm.ID, f.author.ID, models.RoleAdmin); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := f.svc.Update(cm.ID, f.reader.ID, &UpdateCommentDTO{Content: "ghost"}); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("update after delete error = %v, want not_found", err)
	}
}

func TestCommentLikeToggle(t *testing.T) {
	f := setupCommentTest(t)

	cm, err := f.svc.Create(f.reader.ID, &CreateCommentDTO{Content: "likeable", PostID: f.post.ID})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}

	first, err := f.svc.ToggleLike(cm.ID, f.author.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !first.Liked || first.LikeCount != 1 {
		t.Fatalf("first = %+v, want liked with count 1", first)
	}

	second, err := f.svc.ToggleLike(cm.ID, f.author.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if second.Liked || second.LikeCount != 0 {
		t.Fatalf("second = %+v, want unliked with count 0", second)
	}
}

func TestListByPostOrdersOldestFirst(t *testing.T) {
	f := setupCommentTest(t)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Create(f.reader.ID, &CreateCommentDTO{
			Content: fmt.Sprintf("comment %d", i), PostID: f.post.ID,
		}); err != nil {
			t.Fatalf("create comment %d: %v", i, err)
		}
	}

	items, pag, err := f.svc.ListByPost(f.post.ID, pagination.Query{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || pag.Total != 3 || pag.TotalPages != 2 {
		t.Fatalf("page = %d items, total %d over %d pages; want 2/3/2", len(items), pag.Total, pag.TotalPages)
	}
	if items[0].Content != "comment 0" {
		t.Fatalf("first item = %q, want oldest comment", items[0].Content)
	}
}
