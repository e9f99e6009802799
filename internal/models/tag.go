package models

// TagModel labels posts. Name and slug are both unique.
type TagModel struct {
	Base
	Name string `json:"name" gorm:"uniqueIndex;not null"`
	Slug string `json:"slug" gorm:"uniqueIndex;not null"`
}

func (TagModel) TableName() string { return "tags" }
