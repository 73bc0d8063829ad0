// Package cli implements shopctl, the non-interactive companion of the admin
// server.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/domain/catalog"
)

// version is set at build time via -ldflags.
var version = "dev"

// Opener builds the catalog service for the saved connection.
type Opener func(ctx context.Context) (*catalog.Service, error)

// Env holds what every command needs.
type Env struct {
	Log  *zap.Logger
	Open Opener
}

// NewRootCmd creates the top-level `shopctl` command.
func NewRootCmd(env Env) *cobra.Command {
	root := &cobra.Command{
		Use:   "shopctl",
		Short: "Manage a GitHub-backed shop catalog from the command line",
		Long: `shopctl reads and writes the same catalog documents as the admin console,
using the connection saved by its setup page.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newImportCmd(env))
	root.AddCommand(newExportCmd(env))
	root.AddCommand(newCategoriesCmd(env))

	return root
}
