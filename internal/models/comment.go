package models

// CommentModel is a comment on a post. The likes join table holds each user
// at most once (toggle semantics).
type CommentModel struct {
	Base
	Content  string      `json:"content"  gorm:"type:text;not null"`
	PostID   string      `json:"post_id"  gorm:"index;not null"`
	Post     *PostModel  `json:"-"        gorm:"foreignKey:PostID"`
	AuthorID string      `json:"author_id" gorm:"index;not null"`
	Author   *UserModel  `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	IsEdited bool        `json:"is_edited" gorm:"default:false"`
	LikedBy  []UserModel `json:"-"        gorm:"many2many:comment_likes"`
}

func (CommentModel) TableName() string { return "comments" }
