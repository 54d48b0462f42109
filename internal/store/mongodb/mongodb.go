// Package mongodb stores expenses and accounts in MongoDB.
//
// Expenses live in the "expenses" collection keyed by ObjectID, with the
// owner key in "user" and the amount as Decimal128. Accounts live in
// "users" with unique indexes on email and username.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"dailyexpense/internal/core"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/store"
)

const (
	expensesCollection = "expenses"
	usersCollection    = "users"
)

type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type Store struct {
	client   *mongo.Client
	expenses *mongo.Collection
	users    *mongo.Collection
}

var (
	_ store.ExpenseStore  = (*Store)(nil)
	_ store.AccountStore  = (*Store)(nil)
	_ store.HealthChecker = (*Store)(nil)
)

type expenseDoc struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	User      string               `bson:"user"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Category  string               `bson:"category"`
	Note      string               `bson:"note"`
	Date      time.Time            `bson:"date"`
	CreatedAt time.Time            `bson:"createdAt"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type totalDoc struct {
	Category string               `bson:"_id"`
	Total    primitive.Decimal128 `bson:"totalAmount"`
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetConnectTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:   client,
		expenses: db.Collection(expensesCollection),
		users:    db.Collection(usersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentStorage).InfoContext(ctx, "Connected to MongoDB", "database", cfg.Database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create expenses index: %w", err)
	}
	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create users indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping implements store.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// ListExpenses implements store.ExpenseStore.
func (s *Store) ListExpenses(ctx context.Context, owner string) ([]core.Expense, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.expenses.Find(ctx, bson.M{"user": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	var docs []expenseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		e, err := d.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// CreateExpense implements store.ExpenseStore.
func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	amount, err := toDecimal128(e.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	doc := expenseDoc{
		ID:        primitive.NewObjectID(),
		User:      e.Owner,
		Amount:    amount,
		Category:  string(e.Category),
		Note:      e.Note,
		Date:      truncate(e.Date),
		CreatedAt: truncate(time.Now()),
	}
	if _, err := s.expenses.InsertOne(ctx, doc); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return doc.toCore()
}

// UpdateExpense implements store.ExpenseStore.
func (s *Store) UpdateExpense(ctx context.Context, owner, id string, p core.ExpensePatch) (core.Expense, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	filter := bson.M{"_id": oid, "user": owner}

	set := bson.M{}
	if p.Amount != nil {
		amount, err := toDecimal128(*p.Amount)
		if err != nil {
			return core.Expense{}, err
		}
		set["amount"] = amount
	}
	if p.Category != nil {
		set["category"] = string(*p.Category)
	}
	if p.Note != nil {
		set["note"] = *p.Note
	}
	if p.Date != nil {
		set["date"] = truncate(*p.Date)
	}

	var doc expenseDoc
	if len(set) == 0 {
		err = s.expenses.FindOne(ctx, filter).Decode(&doc)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = s.expenses.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	return doc.toCore()
}

// DeleteExpense implements store.ExpenseStore.
func (s *Store) DeleteExpense(ctx context.Context, owner, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.ErrExpenseNotFound
	}
	res, err := s.expenses.DeleteOne(ctx, bson.M{"_id": oid, "user": owner})
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

// SummarizeByCategory implements store.ExpenseStore.
func (s *Store) SummarizeByCategory(ctx context.Context, owner string) ([]core.CategoryTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user": owner}}},
		{{Key: "$group", Value: bson.M{"_id": "$category", "totalAmount": bson.M{"$sum": "$amount"}}}},
	}
	cur, err := s.expenses.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate expenses: %w", err)
	}
	var docs []totalDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode category totals: %w", err)
	}
	out := make([]core.CategoryTotal, 0, len(docs))
	for _, d := range docs {
		total, err := fromDecimal128(d.Total)
		if err != nil {
			return nil, err
		}
		out = append(out, core.CategoryTotal{Category: core.Category(d.Category), Total: total})
	}
	core.SortTotals(out)
	return out, nil
}

// CreateAccount implements store.AccountStore.
func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Username:  a.Username,
		Email:     a.Email,
		Password:  a.PasswordHash,
		CreatedAt: truncate(time.Now()),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "username") {
				return core.Account{}, core.ErrUsernameTaken
			}
			return core.Account{}, core.ErrEmailTaken
		}
		return core.Account{}, fmt.Errorf("insert user: %w", err)
	}
	return doc.toCore(), nil
}

// FindAccountByEmailOrUsername implements store.AccountStore.
func (s *Store) FindAccountByEmailOrUsername(ctx context.Context, email, username string) (core.Account, error) {
	filter := bson.M{"$or": bson.A{bson.M{"email": email}, bson.M{"username": username}}}
	cur, err := s.users.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return core.Account{}, fmt.Errorf("find user: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return core.Account{}, fmt.Errorf("decode users: %w", err)
	}
	if len(docs) == 0 {
		return core.Account{}, core.ErrAccountNotFound
	}
	// Up to two accounts can match; report the email match first.
	for _, d := range docs {
		if d.Email == email {
			return d.toCore(), nil
		}
	}
	return docs[0].toCore(), nil
}

// FindAccountByEmail implements store.AccountStore.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (core.Account, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// FindAccountByID implements store.AccountStore.
func (s *Store) FindAccountByID(ctx context.Context, id string) (core.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.Account{}, core.ErrAccountNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (core.Account, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toCore(), nil
}

func (d expenseDoc) toCore() (core.Expense, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		ID:        d.ID.Hex(),
		Owner:     d.User,
		Amount:    amount,
		Category:  core.Category(d.Category),
		Note:      d.Note,
		Date:      d.Date.UTC(),
		CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

func (d userDoc) toCore() core.Account {
	return core.Account{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

func toDecimal128(m core.Money) (primitive.Decimal128, error) {
	d, err := primitive.ParseDecimal128(m.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", m, err)
	}
	return d, nil
}

func fromDecimal128(d primitive.Decimal128) (core.Money, error) {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return core.Money{}, fmt.Errorf("decode amount %s: %w", d, err)
	}
	return core.NewMoney(v), nil
}

// truncate drops precision BSON dates cannot hold.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
