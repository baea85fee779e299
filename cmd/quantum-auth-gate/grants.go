package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
)

func newGrantsCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Inspect or edit stored origin grants (stop the gate first)",
	}
	cmd.AddCommand(newGrantsListCmd(load), newGrantsRevokeCmd(load))
	return cmd
}

func newGrantsListCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List allowed origins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg, envOrPromptPassword)
			if err != nil {
				return err
			}
			defer closeStore()

			cache, err := permissions.NewCache(cmd.Context(), store)
			if err != nil {
				return err
			}
			grants := cache.Snapshot()
			if len(grants) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no grants")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORIGIN\tACCOUNT\tSTATE\tGRANTED")
			for _, g := range grants {
				granted := "-"
				if !g.GrantedAt.IsZero() {
					granted = g.GrantedAt.Format("2006-01-02 15:04:05Z07:00")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Origin, g.AccountAddress, g.State, granted)
			}
			return w.Flush()
		},
	}
}

func newGrantsRevokeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <origin> <account>",
		Short: "Delete the grant of one origin for one account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg, envOrPromptPassword)
			if err != nil {
				return err
			}
			defer closeStore()

			origin, account := args[0], args[1]
			_, ok, err := store.Get(cmd.Context(), origin, account)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Newf("no grant for %s and %s", permissions.NormalizeOrigin(origin), permissions.NormalizeAccount(account))
			}
			if err := store.Delete(cmd.Context(), origin, account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s for %s\n", permissions.NormalizeOrigin(origin), permissions.NormalizeAccount(account))
			return nil
		},
	}
}
