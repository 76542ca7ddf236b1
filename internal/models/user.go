package models

import (
	"strings"
	"time"
)

type Account struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	PasswordHash string         `json:"-"`
	Role         UserRole       `json:"role"`
	Balance      int64          `json:"point"`
	UsedBills    []string       `json:"usedBills,omitempty"`
	History      []HistoryEntry `json:"history,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsAdmin and IsManager are derived from Role and never persisted.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a *Account) IsManager() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}

func (a *Account) HasUsedBill(billCode string) bool {
	for _, b := range a.UsedBills {
		if b == billCode {
			return true
		}
	}
	return false
}

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleUser    UserRole = "user"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// QRPrefix marks identities scanned from a user's QR code.
const QRPrefix = "USERQR|"

// NormalizeIdentity strips the QR payload prefix and surrounding whitespace.
func NormalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	identity = strings.TrimPrefix(identity, QRPrefix)
	return strings.TrimSpace(identity)
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Identity accepts both the identifier and legacy username fields.
func (r LoginRequest) Identity() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Username
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type ResetPointsRequest struct {
	Reason string `json:"reason"`
}

type AccountResponse struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Role      UserRole       `json:"role"`
	IsAdmin   bool           `json:"isAdmin"`
	IsManager bool           `json:"isManager"`
	Point     int64          `json:"point"`
	UsedBills []string       `json:"usedBills,omitempty"`
	History   []HistoryEntry `json:"history,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func NewAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Phone:     a.Phone,
		Role:      a.Role,
		IsAdmin:   a.IsAdmin(),
		IsManager: a.IsManager(),
		Point:     a.Balance,
		UsedBills: a.UsedBills,
		History:   a.History,
		CreatedAt: a.CreatedAt,
	}
}

type AuthResponse struct {
	User         AccountResponse `json:"user"`
	Token        string          `json:"token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
