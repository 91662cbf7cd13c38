package models

// User 代表系统中的用户。
type User struct {
	BaseModel
	FullName         string `gorm:"type:varchar(100);not null" json:"fullName"`
	Email            string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash     string `gorm:"type:varchar(255);not null" json:"-"` // never serialised
	Bio              string `gorm:"type:text" json:"bio"`
	ProfilePic       string `gorm:"type:varchar(512)" json:"profilePic"`
	NativeLanguage   string `gorm:"type:varchar(50)" json:"nativeLanguage"`
	LearningLanguage string `gorm:"type:varchar(50)" json:"learningLanguage"`
	Location         string `gorm:"type:varchar(100)" json:"location"`
	IsOnboarded      bool   `gorm:"not null;default:false;index" json:"isOnboarded"`

	// Friends is loaded from the user_friends table, it is not a column.
	Friends []string `gorm:"-" json:"friends"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}

// UserSummary holds the public profile fields shown in listings.
type UserSummary struct {
	ID               string `json:"id"`
	FullName         string `json:"fullName"`
	ProfilePic       string `json:"profilePic"`
	Bio              string `json:"bio,omitempty"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
	Location         string `json:"location,omitempty"`
}

// Summary returns the public listing view of the user.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:               u.ID,
		FullName:         u.FullName,
		ProfilePic:       u.ProfilePic,
		Bio:              u.Bio,
		NativeLanguage:   u.NativeLanguage,
		LearningLanguage: u.LearningLanguage,
		Location:         u.Location,
	}
}

// ProfileFields carries the profile attributes that may be merged into a user.
// Empty strings leave the stored value untouched.
type ProfileFields struct {
	FullName         string `json:"fullName"`
	Bio              string `json:"bio"`
	ProfilePic       string `json:"profilePic"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
	Location         string `json:"location"`
}

// Apply merges the non-empty fields into u and reports whether anything changed.
func (p ProfileFields) Apply(u *User) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&u.FullName, p.FullName)
	set(&u.Bio, p.Bio)
	set(&u.ProfilePic, p.ProfilePic)
	set(&u.NativeLanguage, p.NativeLanguage)
	set(&u.LearningLanguage, p.LearningLanguage)
	set(&u.Location, p.Location)
	return changed
}
