package entity

import (
	"time"
)

// Assignment 个人领用记录（一段保管期，闭合后不可修改）
type Assignment struct {
	ID        string     `json:"id" gorm:"primaryKey;size:32"`
	ItemID    string     `json:"item_id" gorm:"size:32;not null;index"`
	UserID    string     `json:"user_id" gorm:"size:32;not null;index"`
	StartAt   time.Time  `json:"start_at" gorm:"not null"`
	EndAt     *time.Time `json:"end_at"`
	Condition string     `json:"condition" gorm:"size:256"`
	CreatedAt time.Time  `json:"created_at"`

	// 关联
	Item *Item `json:"item,omitempty" gorm:"foreignKey:ItemID"`
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Assignment) TableName() string {
	return "assignments"
}
