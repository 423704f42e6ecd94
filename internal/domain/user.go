package domain

type User struct {
	ID     string `db:"id" json:"id"`
	Email  string `db:"email" json:"email"`
	Name   string `db:"name" json:"name"`
	Hash   string `db:"password_hash" json:"-"`
	Role   string `db:"role" json:"role"`
	Active bool   `db:"active" json:"active"`
}

func (u *User) IsAdmin() bool { return u.Role == "ADMIN" }
