package user

import "time"

// OperationsDepartment is the department allowed into the operations room.
const OperationsDepartment = "Operations"

// User is a dashboard account as stored by the user directory.
type User struct {
	ID         string `gorm:"primaryKey;type:text"`
	Name       string `gorm:"not null;type:text"`
	Email      string `gorm:"uniqueIndex;type:text"`
	Department string `gorm:"index;type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Identity is the resolved owner of an authenticated connection.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Department  string `json:"department"`
}

// IsOperations reports whether the identity belongs to the operations team.
func (i Identity) IsOperations() bool {
	return i.Department == OperationsDepartment
}

// ToIdentity converts a directory record to a connection identity.
func (u *User) ToIdentity() Identity {
	return Identity{
		ID:          u.ID,
		DisplayName: u.Name,
		Department:  u.Department,
	}
}
