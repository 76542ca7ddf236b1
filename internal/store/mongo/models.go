package mongo

import (
	"time"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

type accountDoc struct {
	ID           string         `bson:"_id"`
	Username     string         `bson:"username"`
	Email        string         `bson:"email"`
	Phone        string         `bson:"phone"`
	Identities   []string       `bson:"identities"`
	PasswordHash string         `bson:"password"`
	Role         string         `bson:"role"`
	Point        int64          `bson:"point"`
	UsedBills    []string       `bson:"usedBills"`
	History      []historyDoc   `bson:"history"`
	GrantCounts  map[string]int `bson:"grantCounts,omitempty"`
	CreatedAt    time.Time      `bson:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at"`
}

type historyDoc struct {
	Type      string    `bson:"type"`
	Point     int64     `bson:"point"`
	Partner   string    `bson:"partner,omitempty"`
	BillCode  string    `bson:"billCode,omitempty"`
	VoucherID string    `bson:"voucher_id,omitempty"`
	GrantID   string    `bson:"grant_id,omitempty"`
	Reason    string    `bson:"reason,omitempty"`
	Actor     string    `bson:"actor,omitempty"`
	Date      time.Time `bson:"date"`
}

type voucherDoc struct {
	ID         string    `bson:"_id"`
	Partner    string    `bson:"partner"`
	Point      int64     `bson:"point"`
	MaxPerUser int       `bson:"maxPerUser"`
	Expired    time.Time `bson:"expired"`
	Status     string    `bson:"status"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type grantDoc struct {
	ID          string     `bson:"_id"`
	AccountID   string     `bson:"account_id"`
	Username    string     `bson:"username"`
	VoucherID   string     `bson:"voucher_id"`
	Partner     string     `bson:"partner"`
	Point       int64      `bson:"point"`
	Status      string     `bson:"status"`
	ExchangedAt time.Time  `bson:"exchanged_at"`
	UsedAt      *time.Time `bson:"used_at"`
}

type partnerDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Type        string    `bson:"type"`
	Description string    `bson:"description"`
	ImageID     string    `bson:"image_id"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toAccountDoc(a *models.Account) accountDoc {
	d := accountDoc{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		Phone:        a.Phone,
		Identities:   store.Identities(a),
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		Point:        a.Balance,
		UsedBills:    append([]string{}, a.UsedBills...),
		History:      make([]historyDoc, 0, len(a.History)),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	for _, e := range a.History {
		d.History = append(d.History, toHistoryDoc(e))
	}
	return d
}

func (d *accountDoc) toModel() *models.Account {
	a := &models.Account{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Role:         models.UserRole(d.Role),
		Balance:      d.Point,
		UsedBills:    d.UsedBills,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	for _, h := range d.History {
		a.History = append(a.History, h.toModel())
	}
	return a
}

func toHistoryDoc(e models.HistoryEntry) historyDoc {
	return historyDoc{
		Type:      string(e.Type),
		Point:     e.Amount,
		Partner:   e.Partner,
		BillCode:  e.BillCode,
		VoucherID: e.VoucherID,
		GrantID:   e.GrantID,
		Reason:    e.Reason,
		Actor:     e.Actor,
		Date:      e.CreatedAt,
	}
}

func (h historyDoc) toModel() models.HistoryEntry {
	return models.HistoryEntry{
		Type:      models.EntryType(h.Type),
		Amount:    h.Point,
		Partner:   h.Partner,
		BillCode:  h.BillCode,
		VoucherID: h.VoucherID,
		GrantID:   h.GrantID,
		Reason:    h.Reason,
		Actor:     h.Actor,
		CreatedAt: h.Date,
	}
}

func toVoucherDoc(v *models.Voucher) voucherDoc {
	return voucherDoc{
		ID:         v.ID,
		Partner:    v.Partner,
		Point:      v.Cost,
		MaxPerUser: v.MaxPerUser,
		Expired:    v.ExpiresAt,
		Status:     string(v.Status),
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func (d *voucherDoc) toModel() *models.Voucher {
	return &models.Voucher{
		ID:         d.ID,
		Partner:    d.Partner,
		Cost:       d.Point,
		MaxPerUser: d.MaxPerUser,
		ExpiresAt:  d.Expired,
		Status:     models.VoucherStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func toGrantDoc(g *models.Grant) grantDoc {
	return grantDoc{
		ID:          g.ID,
		AccountID:   g.AccountID,
		Username:    g.Username,
		VoucherID:   g.VoucherID,
		Partner:     g.Partner,
		Point:       g.Cost,
		Status:      string(g.Status),
		ExchangedAt: g.ExchangedAt,
		UsedAt:      g.UsedAt,
	}
}

func (d *grantDoc) toModel() *models.Grant {
	return &models.Grant{
		ID:          d.ID,
		AccountID:   d.AccountID,
		Username:    d.Username,
		VoucherID:   d.VoucherID,
		Partner:     d.Partner,
		Cost:        d.Point,
		Status:      models.GrantStatus(d.Status),
		ExchangedAt: d.ExchangedAt,
		UsedAt:      d.UsedAt,
	}
}

func toPartnerDoc(p *models.Partner) partnerDoc {
	return partnerDoc{
		ID:          p.ID,
		Name:        p.Name,
		Type:        p.Type,
		Description: p.Description,
		ImageID:     p.ImageID,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d *partnerDoc) toModel() *models.Partner {
	return &models.Partner{
		ID:          d.ID,
		Name:        d.Name,
		Type:        d.Type,
		Description: d.Description,
		ImageID:     d.ImageID,
		Status:      models.PartnerStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
