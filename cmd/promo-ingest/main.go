// Command promo-ingest bulk-imports promotion records exported from the
// legacy back office. Exports are gzipped JSON-lines files, one
// promotion per line, potentially overlapping between files; a bloom
// filter keeps the duplicate check cheap across millions of codes.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kavepos/promo-engine/internal/domain/promotion"
	"github.com/kavepos/promo-engine/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promotions*.json.gz export files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("promotion ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("promotion ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "promotions*.json.gz"))
	if err != nil {
		return errors.Wrap(err, "glob export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no promotions*.json.gz files in %s", dataDir)
	}
	slog.Info("found export files", slog.Int("count", len(files)))

	// Parse all files in parallel, deduplicating by code as we go.
	records, err := parseExports(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse exports")
	}
	slog.Info("parsed unique promotions", slog.Int("count", len(records)))

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writePromotions(ctx, repository.NewPromotionRepository(pool), records)
}

// dedup tracks codes seen across all files. The bloom filter answers
// "definitely new" without touching the map; only maybe-seen codes pay
// for the exact check.
type dedup struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

func newDedup() *dedup {
	return &dedup{
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		seen:   make(map[string]struct{}),
	}
}

// add reports whether code was new.
func (d *dedup) add(code string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(code) {
		if _, ok := d.seen[code]; ok {
			return false
		}
	}
	d.filter.AddString(code)
	d.seen[code] = struct{}{}
	return true
}

func parseExports(ctx context.Context, files []string) ([]*promotion.Promotion, error) {
	var (
		mu      sync.Mutex
		records []*promotion.Promotion
	)
	dd := newDedup()

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range files {
		g.Go(func() error {
			var count uint64
			err := streamGzLines(ctx, path, func(line []byte) error {
				rec, err := parseRecord(line)
				if err != nil {
					return errors.Wrapf(err, "line %d", count+1)
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("parse progress", slog.String("file", path), slog.Uint64("lines", count))
				}
				if rec.Code == "" || !dd.add(strings.ToUpper(rec.Code)) {
					return nil
				}
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			slog.Info("file parsed", slog.String("file", path), slog.Uint64("lines", count))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// streamGzLines opens a gzip-compressed file and calls fn per line.
func streamGzLines(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// parseRecord decodes one exported promotion line.
func parseRecord(line []byte) (*promotion.Promotion, error) {
	p := &promotion.Promotion{ID: uuid.New().String(), IsActive: true}

	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			p.Code = v
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "description":
			v, err := d.Str()
			p.Description = v
			return err
		case "typeId":
			v, err := d.Int()
			p.Type = promotion.Type(v)
			return err
		case "discountValue":
			return decodeDecimal(d, &p.DiscountValue)
		case "minOrderValue":
			return decodeDecimal(d, &p.MinOrderValue)
		case "maxDiscount":
			return decodeDecimal(d, &p.MaxDiscount)
		case "buyQuantity":
			v, err := d.Int()
			p.BuyQuantity = v
			return err
		case "getQuantity":
			v, err := d.Int()
			p.GetQuantity = v
			return err
		case "requireSameItem":
			v, err := d.Bool()
			p.RequireSameItem = v
			return err
		case "giftItemIds":
			return decodeStrings(d, &p.GiftItemIDs)
		case "startDateTime":
			return decodeTime(d, &p.StartAt)
		case "endDateTime":
			return decodeTime(d, &p.EndAt)
		case "isActive":
			v, err := d.Bool()
			p.IsActive = v
			return err
		case "maxTotalUsage":
			v, err := d.Int()
			p.MaxTotalUsage = v
			return err
		case "maxUsagePerCustomer":
			v, err := d.Int()
			p.MaxUsagePerCustomer = v
			return err
		case "applyToAllItems":
			v, err := d.Bool()
			p.Scope.AllItems = v
			return err
		case "applyToAllCategories":
			v, err := d.Bool()
			p.Scope.AllCategories = v
			return err
		case "applyToAllCombos":
			v, err := d.Bool()
			p.Scope.AllCombos = v
			return err
		case "applyToAllCustomers":
			v, err := d.Bool()
			p.Scope.AllCustomers = v
			return err
		case "applyToAllCustomerGroups":
			v, err := d.Bool()
			p.Scope.AllCustomerGroups = v
			return err
		case "applyToWalkIn":
			v, err := d.Bool()
			p.Scope.WalkIn = v
			return err
		case "applicableItemIds":
			return decodeStrings(d, &p.Scope.ItemIDs)
		case "applicableCategoryIds":
			return decodeStrings(d, &p.Scope.CategoryIDs)
		case "applicableComboIds":
			return decodeStrings(d, &p.Scope.ComboIDs)
		case "applicableCustomerIds":
			return decodeStrings(d, &p.Scope.CustomerIDs)
		case "applicableCustomerGroupIds":
			return decodeStrings(d, &p.Scope.CustomerGroupIDs)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeDecimal(d *jx.Decoder, dst *decimal.Decimal) error {
	f, err := d.Float64()
	if err != nil {
		return err
	}
	*dst = decimal.NewFromFloat(f)
	return nil
}

func decodeStrings(d *jx.Decoder, dst *[]string) error {
	return d.Arr(func(d *jx.Decoder) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		*dst = append(*dst, v)
		return nil
	})
}

func decodeTime(d *jx.Decoder, dst *time.Time) error {
	v, err := d.Str()
	if err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", v, err)
	}
	*dst = t
	return nil
}

// writePromotions creates records that are not already present; codes
// that exist in the database are left untouched.
func writePromotions(ctx context.Context, repo *repository.PromotionRepository, records []*promotion.Promotion) error {
	slog.Info("writing promotions", slog.Int("count", len(records)))

	var written int
	for i, rec := range records {
		if _, err := repo.GetByCode(ctx, rec.Code); err == nil {
			continue
		} else if !errors.Is(err, promotion.ErrNotFound) {
			return errors.Wrapf(err, "check promotion %s", rec.Code)
		}

		if err := repo.Create(ctx, rec); err != nil {
			return errors.Wrapf(err, "create promotion %s", rec.Code)
		}
		written++

		if (i+1)%100 == 0 || i+1 == len(records) {
			slog.Info("write progress", slog.Int("processed", i+1), slog.Int("written", written))
		}
	}
	slog.Info("write complete", slog.Int("written", written))
	return nil
}
