package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vpecom/shop-admin/internal/domain/catalog"
)

// Export writes products as gzipped JSON lines, one product per line, in
// catalog order.
func Export(ctx context.Context, svc *catalog.Service, w io.Writer) (int, error) {
	state, err := svc.State(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "load catalog")
	}

	gz := pgzip.NewWriter(w)
	lines := make(chan []byte, 64)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(lines)
		for _, p := range state.Products {
			data, err := json.Marshal(p)
			if err != nil {
				return errors.Wrapf(err, "encode product %d", p.ID)
			}
			select {
			case lines <- append(data, '\n'):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for line := range lines {
			if _, err := gz.Write(line); err != nil {
				return errors.Wrap(err, "write")
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		_ = gz.Close()
		return 0, err
	}
	if err := gz.Close(); err != nil {
		return 0, errors.Wrap(err, "close gzip")
	}
	return len(state.Products), nil
}

func newExportCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl.gz>",
		Short: "Write all products to a gzipped JSON lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (rerr error) {
			svc, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return errors.Wrap(err, "create output")
			}
			defer func() {
				if err := f.Close(); err != nil && rerr == nil {
					rerr = errors.Wrap(err, "close output")
				}
			}()
			n, err := Export(cmd.Context(), svc, f)
			if err != nil {
				return err
			}
			env.Log.Info("Export finished", zap.Int("products", n), zap.String("file", args[0]))
			return nil
		},
	}
}
