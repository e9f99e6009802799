package category

import (
	"fmt"
	"testing"
	"time"

	"github.com/quillspace/core/internal/models"
	"github.com/quillspace/core/internal/pkg/errs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupCategoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:category-%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func TestCreateCategoryDerivesSlug(t *testing.T) {
	gdb := setupCategoryTestDB(t)
	svc := NewService(gdb)

	cat, err := svc.Create(&CreateCategoryDTO{Name: "Cloud & Infrastructure"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cat.Slug != "cloud-infrastructure" {
		t.Fatalf("slug = %q, want cloud-infrastructure", cat.Slug)
	}
}

func TestCreateDuplicateCategoryIsConflict(t *testing.T) {
	gdb := setupCategoryTestDB(t)
	svc := NewService(gdb)

	if _, err := svc.Create(&CreateCategoryDTO{Name: "Go"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(&CreateCategoryDTO{Name: "Go"})
	if !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("duplicate create error = %v, want conflict", err)
	}
}

func TestDeleteCategoryBlockedWhileReferenced(t *testing.T) {
	gdb := setupCategoryTestDB(t)
	svc := NewService(gdb)

	cat, err := svc.Create(&CreateCategoryDTO{Name: "Tech"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	author := models.UserModel{Name: "Ann", Email: "ann@example.com", Password: "x", Role: models.RoleAuthor}
	if err := gdb.Create(&author).Error; err != nil {
		t.Fatalf("create author: %v", err)
	}
	post := models.PostModel{
		Title: "Hello", Content: "body", Slug: "hello",
		Status: models.StatusDraft, CategoryID: cat.ID, AuthorID: author.ID,
	}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}

	if err := svc.Delete(cat.ID); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("delete error = %v, want conflict while referenced", err)
	}

	if err := gdb.Delete(&post).Error; err != nil {
		t.Fatalf("remove post: %v", err)
	}
	if err := svc.Delete(cat.ID); err != nil {
		t.Fatalf("delete after posts removed: %v", err)
	}
}

func TestListIncludesPostCounts(t *testing.T) {
	gdb := setupCategoryTestDB(t)
	svc := NewService(gdb)

	tech, err := svc.Create(&CreateCategoryDTO{Name: "Tech"})
	if err != nil {
		t.Fatalf("create tech: %v", err)
	}
	if _, err := svc.Create(&CreateCategoryDTO{Name: "Life"}); err != nil {
		t.Fatalf("create life: %v", err)
	}

	author := models.UserModel{Name: "Ann", Email: "ann@example.com", Password: "x", Role: models.RoleAuthor}
	if err := gdb.Create(&author).Error; err != nil {
		t.Fatalf("create author: %v", err)
	}
	for i := 0; i < 2; i++ {
		post := models.PostModel{
			Title: fmt.Sprintf("Post %d", i), Content: "body",
			Slug: fmt.Sprintf("post-%d", i), Status: models.StatusPublished,
			CategoryID: tech.ID, AuthorID: author.ID,
		}
		if err := gdb.Create(&post).Error; err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	items, err := svc.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	counts := map[string]int64{}
	for _, item := range items {
		counts[item.Name] = item.PostCount
	}
	if counts["Tech"] != 2 || counts["Life"] != 0 {
		t.Fatalf("counts = %v, want Tech:2 Life:0", counts)
	}
}

func TestUpdateCategoryRenameRefreshesSlug(t *testing.T) {
	gdb := setupCategoryTestDB(t)
	svc := NewService(gdb)

	cat, err := svc.Create(&CreateCategoryDTO{Name: "Old Name"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newName := "Brand New"
	updated, err := svc.Update(cat.ID, &UpdateCategoryDTO{Name: &newName})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Brand New" || updated.Slug != "brand-new" {
		t.Fatalf("updated = %q/%q, want Brand New/brand-new", updated.Name, updated.Slug)
	}
}

func TestUpdateCategoryRenameCollisionIsConflict(t *testing.T) {
	gdb := setupCategoryTestDB(t)
	svc := NewService(gdb)

	if _, err := svc.Create(&CreateCategoryDTO{Name: "Tech"}); err != nil {
		t.Fatalf("create tech: %v", err)
	}
	life, err := svc.Create(&CreateCategoryDTO{Name: "Life"})
	if err != nil {
		t.Fatalf("create life: %v", err)
	}

	taken := "Tech"
	if _, err := svc.Update(life.ID, &UpdateCategoryDTO{Name: &taken}); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("rename onto taken name = %v, want conflict", err)
	}
}
