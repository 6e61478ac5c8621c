package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/linyuhan/shophub-backend/pkg/db/models"
)

// RegisterInput carries the fields accepted by the register endpoint.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=50"`
}

// LoginInput carries the credentials accepted by the login endpoint.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserDTO is the public projection of a user account.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User        UserDTO `json:"user"`
	AccessToken string  `json:"access_token"`
}

func toUserDTO(user *models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}
}
