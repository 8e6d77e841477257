package models

// User owns assets. Accounts are managed by the external auth service; this
// table only anchors ownership.
type User struct {
	Base
	Email     string  `gorm:"uniqueIndex;not null" json:"email"`
	Password  string  `gorm:"not null" json:"-"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	IsActive  bool    `gorm:"default:true" json:"is_active"`
	Assets    []Asset `gorm:"foreignKey:UserID" json:"assets,omitempty"`
}
