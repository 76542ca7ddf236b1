package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

type PartnerService struct {
	partners store.PartnerStore
	logger   zerolog.Logger
	now      func() time.Time
}

func NewPartnerService(partners store.PartnerStore, logger zerolog.Logger) *PartnerService {
	return &PartnerService{
		partners: partners,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *PartnerService) List(ctx context.Context, activeOnly bool) ([]*models.Partner, error) {
	partners, err := s.partners.ListPartners(ctx, activeOnly)
	if err != nil {
		return nil, translate("list partners", err, nil)
	}
	return partners, nil
}

// Names returns id and name of every active partner.
func (s *PartnerService) Names(ctx context.Context) ([]models.PartnerName, error) {
	partners, err := s.List(ctx, true)
	if err != nil {
		return nil, err
	}
	names := make([]models.PartnerName, 0, len(partners))
	for _, p := range partners {
		names = append(names, models.PartnerName{ID: p.ID, Name: p.Name})
	}
	return names, nil
}

func (s *PartnerService) Get(ctx context.Context, id string) (*models.Partner, error) {
	partner, err := s.partners.FindPartnerByID(ctx, id)
	if err != nil {
		return nil, translate("find partner", err, models.ErrPartnerNotFound)
	}
	return partner, nil
}

func (s *PartnerService) Create(ctx context.Context, req *models.PartnerRequest) (*models.Partner, error) {
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, models.Invalid("name is required")
	}

	now := s.now()
	partner := &models.Partner{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(*req.Name),
		Status:    models.PartnerStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyPartnerRequest(partner, req); err != nil {
		return nil, err
	}

	if err := s.partners.CreatePartner(ctx, partner); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, models.ErrPartnerExists
		}
		return nil, translate("create partner", err, nil)
	}

	s.logger.Info().Str("partner_id", partner.ID).Str("name", partner.Name).Msg("Partner created")
	return partner, nil
}

func (s *PartnerService) Update(ctx context.Context, id string, req *models.PartnerRequest) (*models.Partner, error) {
	partner, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPartnerRequest(partner, req); err != nil {
		return nil, err
	}
	partner.UpdatedAt = s.now()

	if err := s.partners.UpdatePartner(ctx, partner); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, models.ErrPartnerExists
		}
		return nil, translate("update partner", err, models.ErrPartnerNotFound)
	}

	s.logger.Info().Str("partner_id", id).Str("status", string(partner.Status)).Msg("Partner updated")
	return partner, nil
}

// Delete deactivates the partner. Partners are referenced by name from
// history and vouchers, so the record is kept.
func (s *PartnerService) Delete(ctx context.Context, id string) error {
	inactive := models.PartnerStatusInactive
	_, err := s.Update(ctx, id, &models.PartnerRequest{Status: &inactive})
	return err
}

// DisplayName resolves a scanned partner reference to a display name. The
// reference may be a partner id or a name; unknown references are returned
// as given.
func (s *PartnerService) DisplayName(ctx context.Context, ref string) string {
	if p, err := s.partners.FindPartnerByID(ctx, ref); err == nil {
		return p.Name
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn().Err(err).Str("partner_ref", ref).Msg("Partner lookup failed")
		return ref
	}
	if p, err := s.partners.FindPartnerByName(ctx, ref); err == nil {
		return p.Name
	}
	return ref
}

func applyPartnerRequest(p *models.Partner, req *models.PartnerRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return models.Invalid("name cannot be empty")
		}
		p.Name = name
	}
	if req.Type != nil {
		p.Type = strings.TrimSpace(*req.Type)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.ImageID != nil {
		p.ImageID = strings.TrimSpace(*req.ImageID)
	}
	if req.Status != nil {
		if *req.Status != models.PartnerStatusActive && *req.Status != models.PartnerStatusInactive {
			return models.Invalid("status must be active or inactive")
		}
		p.Status = *req.Status
	}
	return nil
}
