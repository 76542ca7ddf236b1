package models

import "time"

type PartnerStatus string

const (
	PartnerStatusActive   PartnerStatus = "active"
	PartnerStatusInactive PartnerStatus = "inactive"
)

type Partner struct {
	ID          string        `json:"id" yaml:"-"`
	Name        string        `json:"name" yaml:"name"`
	Type        string        `json:"type" yaml:"type"`
	Description string        `json:"description" yaml:"description"`
	ImageID     string        `json:"image_id" yaml:"image_id"`
	Status      PartnerStatus `json:"status" yaml:"status"`
	CreatedAt   time.Time     `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time     `json:"updated_at" yaml:"-"`
}

type PartnerRequest struct {
	Name        *string        `json:"name,omitempty"`
	Type        *string        `json:"type,omitempty"`
	Description *string        `json:"description,omitempty"`
	ImageID     *string        `json:"image_id,omitempty"`
	Status      *PartnerStatus `json:"status,omitempty"`
}

type PartnerName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
