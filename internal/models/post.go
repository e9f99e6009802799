package models

// PostStatus is the publication state of a post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// PostModel is a blog post. Slug is globally unique; the database index is
// the authoritative guard, service-level pre-checks exist only for friendly
// error messages.
type PostModel struct {
	Base
	Title         string         `json:"title"          gorm:"not null"`
	Content       string         `json:"content"        gorm:"type:longtext;not null"`
	Slug          string         `json:"slug"           gorm:"uniqueIndex;not null"`
	Status        PostStatus     `json:"status"         gorm:"type:varchar(16);default:'draft';index"`
	FeaturedImage string         `json:"featured_image"`
	CategoryID    string         `json:"category_id"    gorm:"index;not null"`
	Category      *CategoryModel `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	AuthorID      string         `json:"author_id"      gorm:"index;not null"`
	Author        *UserModel     `json:"author,omitempty"   gorm:"foreignKey:AuthorID"`
	Tags          []TagModel     `json:"tags,omitempty" gorm:"many2many:post_tags"`
	LikedBy       []UserModel    `json:"-"              gorm:"many2many:post_likes"`
}

func (PostModel) TableName() string { return "posts" }

// IsPublished reports whether the post is visible to the public.
func (p PostModel) IsPublished() bool { return p.Status == StatusPublished }
