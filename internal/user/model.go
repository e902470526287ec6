package user

type User struct {
	ID            string `json:"id"`
	InstitutionID string `json:"institution_id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Role          string `json:"role"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
