package model

import "time"

// Class 班级表，对应 classes
// TeacherID 创建后不可修改
type Class struct {
	ClassID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	Title       string `gorm:"type:varchar(200);not null"                     json:"title"`
	Description string `gorm:"type:text;not null;default:''"                  json:"description"`
	TeacherID   string `gorm:"type:uuid;not null;index"                       json:"teacher_id"`
	BaseModel

	// 关联
	Teacher *User         `gorm:"foreignKey:TeacherID;references:UserID" json:"teacher,omitempty"`
	Members []ClassMember `gorm:"foreignKey:ClassID;references:ClassID"  json:"members,omitempty"`
}

// TableName 指定表名
func (Class) TableName() string { return "classes" }

// ClassMember 班级成员表，对应 class_members
// (class_id, user_id) 为复合主键，同一用户在班级中至多一条
type ClassMember struct {
	ClassID  string    `gorm:"type:uuid;primaryKey"                json:"class_id"`
	UserID   string    `gorm:"type:uuid;primaryKey"                json:"user_id"`
	JoinedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`

	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (ClassMember) TableName() string { return "class_members" }

// HasMember 成员列表中是否包含该用户（需预加载 Members）
func (c *Class) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
