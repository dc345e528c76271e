package domain

import "time"

// User es el registro de usuario persistido. PasswordHash nunca sale por JSON.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPatch describe una actualización parcial; nil significa "sin cambios".
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	UpdatedAt    time.Time
}

// IsEmpty indica si el patch no toca ningún campo del usuario.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.PasswordHash == nil
}

// ListQuery es la ventana de paginación ya normalizada.
type ListQuery struct {
	Skip   int
	Limit  int
	Search string
}
