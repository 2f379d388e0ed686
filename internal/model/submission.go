package model

// 提交状态，仅允许 submitted → graded
const (
	SubmissionSubmitted = "submitted"
	SubmissionGraded    = "graded"
)

// Submission 提交表，对应 submissions
// FilePath 为主要产物；Link 仅为兼容旧数据保留，只读
type Submission struct {
	SubmissionID string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"submission_id"`
	AssignmentID string   `gorm:"type:uuid;not null;index"                       json:"assignment_id"`
	StudentID    string   `gorm:"type:uuid;not null;index"                       json:"student_id"`
	FilePath     string   `gorm:"type:varchar(500);not null;default:''"          json:"file_path"`
	Link         string   `gorm:"type:varchar(500);not null;default:''"          json:"link"`
	Status       string   `gorm:"type:varchar(20);not null;default:'submitted'"  json:"status"`
	Grade        *float64 `gorm:"type:double precision"                          json:"grade"`
	Feedback     string   `gorm:"type:text;not null;default:''"                  json:"feedback"`
	BaseModel

	// 关联
	Assignment *Assignment `gorm:"foreignKey:AssignmentID;references:AssignmentID" json:"assignment,omitempty"`
	Student    *User       `gorm:"foreignKey:StudentID;references:UserID"          json:"student,omitempty"`
}

// TableName 指定表名
func (Submission) TableName() string { return "submissions" }
