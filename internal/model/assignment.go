package model

import "time"

// Assignment 作业表，对应 assignments
// ClassID 创建后不可修改；FilePath 为空表示无附件
type Assignment struct {
	AssignmentID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	ClassID      string    `gorm:"type:uuid;not null;index"                       json:"class_id"`
	Title        string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Description  string    `gorm:"type:text;not null;default:''"                  json:"description"`
	DueDate      time.Time `gorm:"not null"                                       json:"due_date"`
	CreatorID    string    `gorm:"column:created_by;type:uuid;not null"           json:"created_by"`
	FilePath     string    `gorm:"type:varchar(500);not null;default:''"          json:"file_path"`
	BaseModel

	// 关联
	Class   *Class `gorm:"foreignKey:ClassID;references:ClassID"     json:"class,omitempty"`
	Creator *User  `gorm:"foreignKey:CreatorID;references:UserID"    json:"creator,omitempty"`
}

// TableName 指定表名
func (Assignment) TableName() string { return "assignments" }
