package cli

import (
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

// newCategoriesCmd creates `categories list|add|remove`.
func newCategoriesCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List and edit categories",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print categories with their index",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := env.Open(cmd.Context())
				if err != nil {
					return err
				}
				state, err := svc.State(cmd.Context())
				if err != nil {
					return err
				}
				for i, c := range state.Categories {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, c)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Append a category",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := env.Open(cmd.Context())
				if err != nil {
					return err
				}
				return svc.AddCategory(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "remove <index>",
			Short: "Remove the category at index",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				idx, err := strconv.Atoi(args[0])
				if err != nil {
					return errors.Wrap(err, "parse index")
				}
				svc, err := env.Open(cmd.Context())
				if err != nil {
					return err
				}
				return svc.RemoveCategory(cmd.Context(), idx)
			},
		},
	)
	return cmd
}
