// Command seed-db loads a catalog fixture and a couple of sample
// promotions into the database for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kavepos/promo-engine/internal/domain/auth"
	"github.com/kavepos/promo-engine/internal/domain/promotion"
	"github.com/kavepos/promo-engine/internal/repository"
)

type catalogJSON struct {
	Categories []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
	Items []struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Price      decimal.Decimal `json:"price"`
		CategoryID string          `json:"categoryId"`
	} `json:"items"`
	Combos []struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	} `json:"combos"`
	Customers []struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		Phone    string   `json:"phone"`
		GroupIDs []string `json:"groupIds"`
	} `json:"customers"`
	CustomerGroups []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"customerGroups"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	cat, err := readCatalog(catalogFile)
	if err != nil {
		return err
	}

	if err := seedCatalog(ctx, pool, cat); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedPromotions(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	if err := seedAPIKey(ctx, pool); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

// seedAPIKey inserts a development write key so the local back office
// can hit the admin endpoints out of the box.
func seedAPIKey(ctx context.Context, pool *pgxpool.Pool) error {
	const devKey = "dev-key"

	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, name, scopes)
		VALUES ($1, $2, $3, $4) ON CONFLICT (key_hash) DO NOTHING`,
		uuid.New().String(), auth.HashKey(devKey), "local development", []string{auth.ScopePromotionsWrite})
	if err != nil {
		return errors.Wrap(err, "insert dev api key")
	}
	slog.Info("dev api key ready", slog.String("key", devKey))
	return nil
}

func readCatalog(path string) (*catalogJSON, error) {
	slog.Info("reading catalog file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog file")
	}
	var cat catalogJSON
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return &cat, nil
}

// seedCatalog upserts the fixture entities. Categories, combos and
// customer groups have no dependencies on each other and load in
// parallel; items and group memberships follow once their referents
// exist.
func seedCatalog(ctx context.Context, pool *pgxpool.Pool, cat *catalogJSON) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, c := range cat.Categories {
			if _, err := pool.Exec(gctx, `INSERT INTO categories (id, name) VALUES ($1, $2)
				ON CONFLICT (id) DO UPDATE SET name = $2`, c.ID, c.Name); err != nil {
				return errors.Wrapf(err, "upsert category %s", c.ID)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, c := range cat.Combos {
			if _, err := pool.Exec(gctx, `INSERT INTO combos (id, name, price) VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET name = $2, price = $3`, c.ID, c.Name, c.Price); err != nil {
				return errors.Wrapf(err, "upsert combo %s", c.ID)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, grp := range cat.CustomerGroups {
			if _, err := pool.Exec(gctx, `INSERT INTO customer_groups (id, name) VALUES ($1, $2)
				ON CONFLICT (id) DO UPDATE SET name = $2`, grp.ID, grp.Name); err != nil {
				return errors.Wrapf(err, "upsert customer group %s", grp.ID)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, it := range cat.Items {
		if _, err := pool.Exec(ctx, `INSERT INTO items (id, name, price, category_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, category_id = $4`,
			it.ID, it.Name, it.Price, it.CategoryID); err != nil {
			return errors.Wrapf(err, "upsert item %s", it.ID)
		}
	}
	for _, c := range cat.Customers {
		if _, err := pool.Exec(ctx, `INSERT INTO customers (id, name, phone) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = $2, phone = $3`, c.ID, c.Name, c.Phone); err != nil {
			return errors.Wrapf(err, "upsert customer %s", c.ID)
		}
		for _, gid := range c.GroupIDs {
			if _, err := pool.Exec(ctx, `INSERT INTO customer_group_members (customer_id, group_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`, c.ID, gid); err != nil {
				return errors.Wrapf(err, "add customer %s to group %s", c.ID, gid)
			}
		}
	}

	slog.Info("catalog seeded",
		slog.Int("categories", len(cat.Categories)),
		slog.Int("items", len(cat.Items)),
		slog.Int("combos", len(cat.Combos)),
		slog.Int("customers", len(cat.Customers)),
	)
	return nil
}

func seedPromotions(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding sample promotions")

	repo := repository.NewPromotionRepository(pool)
	now := time.Now()

	samples := []*promotion.Promotion{
		{
			ID:            uuid.New().String(),
			Code:          "WELCOME10",
			Name:          "Welcome 10% off",
			Description:   "10% off for everyone, capped",
			Type:          promotion.TypePercentage,
			DiscountValue: decimal.NewFromInt(10),
			MaxDiscount:   decimal.NewFromInt(20000),
			StartAt:       now,
			EndAt:         now.AddDate(1, 0, 0),
			IsActive:      true,
			Scope: promotion.Scope{
				AllItems:     true,
				AllCustomers: true,
				WalkIn:       true,
			},
		},
		{
			ID:              uuid.New().String(),
			Code:            "COFFEE21",
			Name:            "Buy 2 coffees, get 1 pastry",
			Type:            promotion.TypeGift,
			BuyQuantity:     2,
			GetQuantity:     1,
			RequireSameItem: true,
			GiftItemIDs:     []string{"item-croissant", "item-muffin"},
			StartAt:         now,
			EndAt:           now.AddDate(0, 3, 0),
			IsActive:        true,
			MaxTotalUsage:   1000,
			Scope: promotion.Scope{
				CategoryIDs:  []string{"cat-coffee"},
				AllCustomers: true,
				WalkIn:       true,
			},
		},
	}

	for _, p := range samples {
		if _, err := repo.GetByCode(ctx, p.Code); err == nil {
			slog.Info("promotion exists, skipping", slog.String("code", p.Code))
			continue
		}
		if err := repo.Create(ctx, p); err != nil {
			return errors.Wrapf(err, "create promotion %s", p.Code)
		}
		slog.Info("created promotion", slog.String("code", p.Code), slog.String("name", p.Name))
	}
	return nil
}
