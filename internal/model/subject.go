package model

// swagger:model Subject
type Subject struct {
	BaseModel
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	CreatedBy   uint   `gorm:"index" json:"createdBy"`
	IsActive    bool   `gorm:"not null" json:"isActive"`
}

func (Subject) TableName() string {
	return "subjects"
}
