package auth

import (
	"strings"
	"time"

	errors "github.com/frahmantamala/church-cms/internal"
	"github.com/frahmantamala/church-cms/internal/core/common/validation"
	"github.com/frahmantamala/church-cms/internal/user"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (d LoginDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("email", strings.TrimSpace(d.Email)).Required().MaxLength(255)
	validator.Field("password", d.Password).Required()
	return validator.Validate()
}

type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        *user.User `json:"user"`
}
