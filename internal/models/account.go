package models

// Account represents a user's stored identity and credential record.
type Account struct {
	ID           int64   `db:"id" json:"id"`
	Username     string  `db:"username" json:"username"`
	PasswordHash string  `db:"password_hash" json:"-"` // Never expose this to the client
	Sex          *string `db:"sex" json:"sex"`
	BirthDate    Date    `db:"birth_date" json:"birth_date"`
	Active       bool    `db:"active" json:"-"`
}

// PublicAccount is the sanitized shape of an account returned by the API.
type PublicAccount struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Sex       *string `json:"sex"`
	BirthDate Date    `json:"birth_date"`
}

// Public strips every credential field.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:        a.ID,
		Username:  a.Username,
		Sex:       a.Sex,
		BirthDate: a.BirthDate,
	}
}
