// Package mongo implements the directories on MongoDB.
//
// Each balance mutation is one conditional update of the account document.
// Grant documents are written after the account update commits; if that
// insert fails the debit is compensated, and a crash between the two writes
// leaves grantCounts ahead of the grants collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

const (
	colUsers         = "users"
	colVouchers      = "vouchers"
	colGrants        = "user_vouchers"
	colPartners      = "partners"
	resetMaxAttempts = 5
)

var _ store.Store = (*Store)(nil)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger zerolog.Logger
}

// Connect dials uri, pings the primary and creates the indexes.
func Connect(ctx context.Context, uri, database string, logger zerolog.Logger) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(10 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo is not responding: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(database),
		logger: logger.With().Str("store", "mongo").Logger(),
	}
	if err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.logger.Info().Str("database", database).Msg("Connected to MongoDB")
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	unique := func(name, field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true).SetName(name),
		}
	}
	plain := func(name string, fields ...string) mongo.IndexModel {
		keys := bson.D{}
		for _, f := range fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
	}

	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			unique("uq_username", "username"),
			// Multikey: each identifier may appear in one account only.
			unique("uq_identities", "identities"),
			plain("idx_role", "role"),
		},
		colPartners: {
			unique("uq_name", "name"),
			plain("idx_status", "status"),
		},
		colVouchers: {
			plain("idx_expired", "expired"),
			plain("idx_status", "status"),
			plain("idx_partner", "partner"),
		},
		colGrants: {
			plain("idx_account_voucher", "account_id", "voucher_id"),
			plain("idx_status", "status"),
		},
	}
	for col, idx := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) users() *mongo.Collection    { return s.db.Collection(colUsers) }
func (s *Store) vouchers() *mongo.Collection { return s.db.Collection(colVouchers) }
func (s *Store) grants() *mongo.Collection   { return s.db.Collection(colGrants) }
func (s *Store) partners() *mongo.Collection { return s.db.Collection(colPartners) }

// Accounts

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.users().InsertOne(ctx, toAccountDoc(a))
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error().Err(err).Str("username", a.Username).Msg("Error creating user")
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) EnsureAccount(ctx context.Context, a *models.Account) (bool, error) {
	res, err := s.users().UpdateOne(ctx,
		bson.M{"username": a.Username},
		bson.M{"$setOnInsert": toAccountDoc(a)},
		options.UpdateOne().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, store.ErrAlreadyExists
	}
	if err != nil {
		return false, fmt.Errorf("failed to seed user: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *Store) findAccount(ctx context.Context, filter bson.M) (*models.Account, error) {
	var d accountDoc
	err := s.users().FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return d.toModel(), nil
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id})
}

func (s *Store) FindAccountByIdentity(ctx context.Context, identifier string) (*models.Account, error) {
	return s.findAccount(ctx, identityFilter(identifier))
}

func identityFilter(identifier string) bson.M {
	return bson.M{"identities": identifier}
}

func (s *Store) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	cur, err := s.users().Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetProjection(bson.M{"history": 0, "usedBills": 0}),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing users")
		return nil, fmt.Errorf("database error: %w", err)
	}
	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	accounts := make([]*models.Account, 0, len(docs))
	for i := range docs {
		accounts = append(accounts, docs[i].toModel())
	}
	return accounts, nil
}

// explainMiss tells a missing account apart from a failed condition.
func (s *Store) explainMiss(ctx context.Context, id string, conditionErr error) error {
	n, err := s.users().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return conditionErr
}

func (s *Store) UpdateAccountRole(ctx context.Context, id string, role models.UserRole) error {
	filter := bson.M{"_id": id}
	if role != models.RoleAdmin {
		filter["role"] = bson.M{"$ne": string(models.RoleAdmin)}
	}
	res, err := s.users().UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"role":       string(role),
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("Error updating user role")
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.explainMiss(ctx, id, store.ErrProtected)
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.users().DeleteOne(ctx, bson.M{"_id": id, "role": bson.M{"$ne": string(models.RoleAdmin)}})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("Error deleting user")
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return s.explainMiss(ctx, id, store.ErrProtected)
	}
	return nil
}

func (s *Store) CreditBill(ctx context.Context, accountID string, c store.BillCredit) (int64, error) {
	entry := toHistoryDoc(models.HistoryEntry{
		Type:      models.EntryTypeEarn,
		Amount:    c.Points,
		Partner:   c.Partner,
		BillCode:  c.BillCode,
		CreatedAt: c.At,
	})

	var d accountDoc
	err := s.users().FindOneAndUpdate(ctx,
		creditFilter(accountID, c.BillCode),
		bson.M{
			"$inc":      bson.M{"point": c.Points},
			"$addToSet": bson.M{"usedBills": c.BillCode},
			"$push":     bson.M{"history": entry},
			"$set":      bson.M{"updated_at": c.At},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"point": 1}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, s.explainMiss(ctx, accountID, store.ErrDuplicateBill)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", accountID).Msg("Error crediting bill")
		return 0, fmt.Errorf("failed to credit bill: %w", err)
	}
	return d.Point, nil
}

// creditFilter matches the account only while billCode is not in its used set.
func creditFilter(accountID, billCode string) bson.M {
	return bson.M{"_id": accountID, "usedBills": bson.M{"$ne": billCode}}
}

// ResetBalance swaps the observed balance for zero, retrying when a concurrent
// mutation changed it in between.
func (s *Store) ResetBalance(ctx context.Context, accountID string, r store.Reset) (int64, error) {
	for attempt := 0; attempt < resetMaxAttempts; attempt++ {
		var d accountDoc
		err := s.users().FindOne(ctx, bson.M{"_id": accountID},
			options.FindOne().SetProjection(bson.M{"point": 1, "role": 1}),
		).Decode(&d)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, store.ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("database error: %w", err)
		}
		if d.Role == string(models.RoleAdmin) {
			return 0, store.ErrProtected
		}
		if d.Point == 0 {
			return 0, store.ErrZeroBalance
		}

		entry := toHistoryDoc(models.HistoryEntry{
			Type:      models.EntryTypeReset,
			Amount:    -d.Point,
			Reason:    r.Reason,
			Actor:     r.Actor,
			CreatedAt: r.At,
		})
		res, err := s.users().UpdateOne(ctx,
			bson.M{"_id": accountID, "point": d.Point, "role": bson.M{"$ne": string(models.RoleAdmin)}},
			bson.M{
				"$set":  bson.M{"point": int64(0), "updated_at": r.At},
				"$push": bson.M{"history": entry},
			},
		)
		if err != nil {
			return 0, fmt.Errorf("failed to reset balance: %w", err)
		}
		if res.MatchedCount == 1 {
			return d.Point, nil
		}
		s.logger.Debug().Str("user_id", accountID).Int("attempt", attempt+1).Msg("Balance changed during reset, retrying")
	}
	return 0, fmt.Errorf("reset of %s kept racing with concurrent updates", accountID)
}

func (s *Store) ListHistory(ctx context.Context, accountID string, limit, offset int) ([]models.HistoryEntry, error) {
	var d accountDoc
	err := s.users().FindOne(ctx, bson.M{"_id": accountID},
		options.FindOne().SetProjection(bson.M{"history": 1}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	limit, offset = store.Page(limit, offset)
	out := make([]models.HistoryEntry, 0, limit)
	for i := len(d.History) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, d.History[i].toModel())
	}
	return out, nil
}

// Vouchers

func (s *Store) CreateVoucher(ctx context.Context, v *models.Voucher) error {
	_, err := s.vouchers().InsertOne(ctx, toVoucherDoc(v))
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating voucher")
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

func (s *Store) FindVoucherByID(ctx context.Context, id string) (*models.Voucher, error) {
	var d voucherDoc
	err := s.vouchers().FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return d.toModel(), nil
}

func (s *Store) ListVouchers(ctx context.Context, f store.VoucherFilter) ([]*models.Voucher, error) {
	filter := bson.M{}
	if f.AvailableOnly {
		filter["status"] = string(models.VoucherStatusAvailable)
	}
	sort := bson.D{{Key: "created_at", Value: -1}}
	if f.SortByCost {
		sort = bson.D{{Key: "point", Value: 1}}
	}

	cur, err := s.vouchers().Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing vouchers")
		return nil, fmt.Errorf("database error: %w", err)
	}
	var docs []voucherDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding vouchers: %w", err)
	}
	out := make([]*models.Voucher, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (s *Store) UpdateVoucher(ctx context.Context, v *models.Voucher) error {
	res, err := s.vouchers().ReplaceOne(ctx, bson.M{"_id": v.ID}, toVoucherDoc(v))
	if err != nil {
		s.logger.Error().Err(err).Str("voucher_id", v.ID).Msg("Error updating voucher")
		return fmt.Errorf("failed to update voucher: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) VoucherStats(ctx context.Context) (*models.VoucherStats, error) {
	var stats models.VoucherStats
	counts := []struct {
		col    *mongo.Collection
		filter bson.M
		dst    *int64
	}{
		{s.vouchers(), bson.M{}, &stats.Total},
		{s.vouchers(), bson.M{"status": string(models.VoucherStatusAvailable)}, &stats.Available},
		{s.grants(), bson.M{}, &stats.Exchanged},
		{s.grants(), bson.M{"status": string(models.GrantStatusUsed)}, &stats.Used},
	}
	for _, c := range counts {
		n, err := c.col.CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		*c.dst = n
	}
	return &stats, nil
}

// Grants

func (s *Store) ExchangeVoucher(ctx context.Context, e store.Exchange) (int64, error) {
	g := e.Grant
	countKey := "grantCounts." + g.VoucherID

	filter := exchangeFilter(e)
	entry := toHistoryDoc(models.HistoryEntry{
		Type:      models.EntryTypeRedeem,
		Amount:    -g.Cost,
		Partner:   g.Partner,
		VoucherID: g.VoucherID,
		GrantID:   g.ID,
		CreatedAt: e.At,
	})

	var d accountDoc
	err := s.users().FindOneAndUpdate(ctx, filter,
		bson.M{
			"$inc":  bson.M{"point": -g.Cost, countKey: 1},
			"$push": bson.M{"history": entry},
			"$set":  bson.M{"updated_at": e.At},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"point": 1}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, s.explainExchangeMiss(ctx, e)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", e.AccountID).Msg("Error debiting for exchange")
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}

	if _, err := s.grants().InsertOne(ctx, toGrantDoc(g)); err != nil {
		s.logger.Error().Err(err).Str("grant_id", g.ID).Msg("Grant insert failed, compensating debit")
		_, cerr := s.users().UpdateOne(ctx, bson.M{"_id": e.AccountID}, bson.M{
			"$inc":  bson.M{"point": g.Cost, countKey: -1},
			"$pull": bson.M{"history": bson.M{"grant_id": g.ID}},
		})
		if cerr != nil {
			s.logger.Error().Err(cerr).Str("user_id", e.AccountID).Str("grant_id", g.ID).Msg("Compensation failed")
		}
		return 0, fmt.Errorf("failed to create grant: %w", err)
	}
	return d.Point, nil
}

// exchangeFilter matches the account only while it can afford the grant and
// holds fewer than MaxPerUser grants of the voucher.
func exchangeFilter(e store.Exchange) bson.M {
	filter := bson.M{"_id": e.AccountID, "point": bson.M{"$gte": e.Grant.Cost}}
	if e.MaxPerUser > 0 {
		// $not also matches documents where the counter is missing.
		filter["grantCounts."+e.Grant.VoucherID] = bson.M{"$not": bson.M{"$gte": e.MaxPerUser}}
	}
	return filter
}

func (s *Store) explainExchangeMiss(ctx context.Context, e store.Exchange) error {
	var d accountDoc
	err := s.users().FindOne(ctx, bson.M{"_id": e.AccountID},
		options.FindOne().SetProjection(bson.M{"point": 1, "grantCounts": 1}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if d.Point < e.Grant.Cost {
		return store.ErrInsufficientBalance
	}
	return store.ErrQuotaExceeded
}

func (s *Store) CountGrants(ctx context.Context, accountID, voucherID string) (int, error) {
	n, err := s.grants().CountDocuments(ctx, bson.M{"account_id": accountID, "voucher_id": voucherID})
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return int(n), nil
}

func (s *Store) ListGrantsByAccount(ctx context.Context, accountID string) ([]*models.Grant, error) {
	cur, err := s.grants().Find(ctx, bson.M{"account_id": accountID},
		options.Find().SetSort(bson.D{{Key: "exchanged_at", Value: -1}}),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", accountID).Msg("Error fetching grants")
		return nil, fmt.Errorf("database error: %w", err)
	}
	var docs []grantDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding grants: %w", err)
	}
	out := make([]*models.Grant, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (s *Store) MarkGrantUsed(ctx context.Context, grantID string, at time.Time) (*models.Grant, error) {
	var d grantDoc
	err := s.grants().FindOneAndUpdate(ctx,
		bson.M{"_id": grantID, "status": string(models.GrantStatusUsable)},
		bson.M{"$set": bson.M{"status": string(models.GrantStatusUsed), "used_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("grant_id", grantID).Msg("Error marking grant used")
		return nil, fmt.Errorf("failed to update grant: %w", err)
	}
	return d.toModel(), nil
}

// Partners

func (s *Store) CreatePartner(ctx context.Context, p *models.Partner) error {
	_, err := s.partners().InsertOne(ctx, toPartnerDoc(p))
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error().Err(err).Str("name", p.Name).Msg("Error creating partner")
		return fmt.Errorf("failed to create partner: %w", err)
	}
	return nil
}

func (s *Store) EnsurePartner(ctx context.Context, p *models.Partner) (bool, error) {
	res, err := s.partners().UpdateOne(ctx,
		bson.M{"name": p.Name},
		bson.M{"$setOnInsert": toPartnerDoc(p)},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to seed partner: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *Store) findPartner(ctx context.Context, filter bson.M) (*models.Partner, error) {
	var d partnerDoc
	err := s.partners().FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return d.toModel(), nil
}

func (s *Store) FindPartnerByID(ctx context.Context, id string) (*models.Partner, error) {
	return s.findPartner(ctx, bson.M{"_id": id})
}

func (s *Store) FindPartnerByName(ctx context.Context, name string) (*models.Partner, error) {
	return s.findPartner(ctx, bson.M{"name": name})
}

func (s *Store) ListPartners(ctx context.Context, activeOnly bool) ([]*models.Partner, error) {
	filter := bson.M{}
	if activeOnly {
		filter["status"] = string(models.PartnerStatusActive)
	}
	cur, err := s.partners().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing partners")
		return nil, fmt.Errorf("database error: %w", err)
	}
	var docs []partnerDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding partners: %w", err)
	}
	out := make([]*models.Partner, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (s *Store) UpdatePartner(ctx context.Context, p *models.Partner) error {
	res, err := s.partners().ReplaceOne(ctx, bson.M{"_id": p.ID}, toPartnerDoc(p))
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error().Err(err).Str("partner_id", p.ID).Msg("Error updating partner")
		return fmt.Errorf("failed to update partner: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
