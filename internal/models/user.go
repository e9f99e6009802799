package models

// Role gates what a user may do. Admin-only operations are tag/category/
// subscriber deletion and stats; authors may mutate only their own posts.
type Role string

const (
	RoleReader Role = "reader"
	RoleAuthor Role = "author"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReader, RoleAuthor, RoleAdmin:
		return true
	}
	return false
}

// UserModel represents a registered user.
type UserModel struct {
	Base
	Name     string `json:"name"  gorm:"not null"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-"     gorm:"not null"`
	Role     Role   `json:"role"  gorm:"type:varchar(16);default:'reader';not null"`
}

func (UserModel) TableName() string { return "users" }
