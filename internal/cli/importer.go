package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/domain/asset"
	"github.com/vpecom/shop-admin/internal/domain/catalog"
)

const (
	bloomCapacity = 100_000
	bloomFPR      = 0.0001
	maxLineBytes  = 1 << 20
)

// importRow is one line of an import file. Images are paths relative to the
// file.
type importRow struct {
	Title       string          `json:"title"`
	Price       catalog.Price   `json:"price"`
	Category    string          `json:"category"`
	Offer       catalog.Percent `json:"offer"`
	Description string          `json:"description"`
	Desc        string          `json:"desc"`
	BuyLink     string          `json:"buyLink"`
	Link        string          `json:"link"`
	Images      []string        `json:"images"`
}

func (r importRow) input(baseDir string) (catalog.ProductInput, error) {
	in := catalog.ProductInput{
		Title:       r.Title,
		Price:       r.Price.Decimal,
		Category:    r.Category,
		Offer:       int(r.Offer),
		Description: r.Description,
		BuyLink:     r.BuyLink,
	}
	if in.Description == "" {
		in.Description = r.Desc
	}
	if in.BuyLink == "" {
		in.BuyLink = r.Link
	}
	for _, p := range r.Images {
		if isRemoteImage(p) {
			in.ExistingImages = append(in.ExistingImages, p)
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return in, errors.Wrap(err, "read image")
		}
		in.NewImages = append(in.NewImages, data)
	}
	return in, nil
}

// isRemoteImage reports whether p is an already hosted image URL, as written
// by export, rather than a local file.
func isRemoteImage(p string) bool {
	return strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "http://")
}

// dedupKey identifies a product for duplicate detection.
func dedupKey(title, category string) string {
	if category == "" {
		category = catalog.DefaultCategory
	}
	return strings.ToLower(strings.TrimSpace(title)) + "\x00" + category
}

// ImportStats summarizes an import run.
type ImportStats struct {
	Inserted   int
	Duplicates int
	Partial    int
}

// Importer bulk-inserts rows of a gzipped JSON lines file.
type Importer struct {
	Service *catalog.Service
	Log     *zap.Logger
	// Dedup skips rows whose title and category were already seen in the
	// file or in the catalog. Bloom false positives may skip a new row.
	Dedup  bool
	DryRun bool
}

// Import reads path and inserts every row in file order. Each row is its
// own bulk insert, so a failed row leaves earlier rows committed.
func (im *Importer) Import(ctx context.Context, path string) (ImportStats, error) {
	var stats ImportStats

	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	if im.Dedup {
		state, err := im.Service.State(ctx)
		if err != nil {
			return stats, errors.Wrap(err, "load catalog")
		}
		for _, p := range state.Products {
			seen.AddString(dedupKey(p.Title, p.Category))
		}
	}

	baseDir := filepath.Dir(path)
	line := 0
	err := streamGzLines(ctx, path, func(raw []byte) error {
		line++
		if len(strings.TrimSpace(string(raw))) == 0 {
			return nil
		}
		var row importRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		lg := im.Log.With(zap.Int("line", line), zap.String("title", row.Title))

		if im.Dedup && seen.TestAndAddString(dedupKey(row.Title, row.Category)) {
			stats.Duplicates++
			lg.Info("Skipping duplicate")
			return nil
		}
		in, err := row.input(baseDir)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		if im.DryRun {
			stats.Inserted++
			lg.Info("Would insert", zap.Int("images", len(in.NewImages)))
			return nil
		}

		p, err := im.Service.BulkInsertProduct(ctx, in)
		var pe *asset.PartialError
		switch {
		case errors.As(err, &pe):
			stats.Partial++
			lg.Warn("Inserted with image failures", zap.Int64("id", p.ID), zap.Error(err))
		case err != nil:
			return errors.Wrapf(err, "line %d", line)
		default:
			lg.Info("Inserted", zap.Int64("id", p.ID))
		}
		stats.Inserted++
		return nil
	})
	return stats, err
}

// streamGzLines opens a gzip-compressed file and calls fn for each line.
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

	return scanLines(ctx, gz, fn)
}

func scanLines(ctx context.Context, r io.Reader, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}

func newImportCmd(env Env) *cobra.Command {
	var (
		noDedup bool
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "import <file.jsonl.gz>",
		Short: "Bulk insert products from a gzipped JSON lines file",
		Long: `Each line is a product object: title, price, category, offer,
description, buyLink and images, a list of local image files relative to the
import file. Rows are inserted one at a time at the front of the catalog.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			im := &Importer{Service: svc, Log: env.Log, Dedup: !noDedup, DryRun: dryRun}
			stats, err := im.Import(cmd.Context(), args[0])
			env.Log.Info("Import finished",
				zap.Int("inserted", stats.Inserted),
				zap.Int("duplicates", stats.Duplicates),
				zap.Int("partial", stats.Partial),
			)
			return err
		},
	}
	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "insert rows even when title and category repeat")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and read images without writing")
	return cmd
}
