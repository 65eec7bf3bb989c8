package users

import "time"

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the user representation returned by auth endpoints. It never
// carries the password hash.
type Summary struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Public() Summary {
	return Summary{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  Summary `json:"user"`
}
