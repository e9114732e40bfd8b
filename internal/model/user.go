package model

const (
	UserStatusActive   = 1
	UserStatusDisabled = 2
)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Status       int    `json:"status"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}

func (u *User) Active() bool {
	return u.Status == UserStatusActive
}
