package models

import "time"

// SubscriberModel is an email-subscription record. Email is case-normalized
// and unique. State machine: a brand-new email starts subscribed; unsubscribe
// sets UnsubscribedAt; resubscribe resets SubscribedAt and clears
// UnsubscribedAt.
type SubscriberModel struct {
	Base
	Email          string     `json:"email"           gorm:"uniqueIndex;not null"`
	IsSubscribed   bool       `json:"is_subscribed"   gorm:"default:true;index"`
	SubscribedAt   time.Time  `json:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`
}

func (SubscriberModel) TableName() string { return "subscribers" }
