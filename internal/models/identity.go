package models

import (
	"fmt"
	"strings"
)

// Role - роль пользователя, выданная слоем аутентификации
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// ParseRole разбирает роль без учета регистра
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCitizen:
		return RoleCitizen, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// Identity - непрозрачный идентификатор пользователя и его роль
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Suggestion - подсказка классификатора: категория и серьезность
type Suggestion struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
}
