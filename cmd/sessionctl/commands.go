package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitshopapp/sessionstore/internal/session"
)

func newMigrateCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the session table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, open, func(ctx context.Context, store *session.Store) error {
				if err := store.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "session table ready")
				return nil
			})
		},
	}
}

func newCountCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of persisted sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, open, func(ctx context.Context, store *session.Store) error {
				n, err := store.Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newCleanupCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, open, func(ctx context.Context, store *session.Store) error {
				before, err := store.Count(ctx)
				if err != nil {
					return err
				}
				if _, err := store.Cleanup(ctx); err != nil {
					return err
				}
				after, err := store.Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", before-after)
				return nil
			})
		},
	}
}

func newClearCmd(open storeOpener) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear all sessions without --yes")
			}
			return withStore(cmd, open, func(ctx context.Context, store *session.Store) error {
				if err := store.ClearAll(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all sessions deleted")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every session")
	return cmd
}

func newShowCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a persisted session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := session.ParseID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, open, func(ctx context.Context, store *session.Store) error {
				record, found, err := store.Load(ctx, id)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("session %s not found or expired", id)
				}

				data, err := json.MarshalIndent(record, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
}

func newDeleteCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>...",
		Short: "Delete one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]session.ID, 0, len(args))
			for _, raw := range args {
				id, err := session.ParseID(raw)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return withStore(cmd, open, func(ctx context.Context, store *session.Store) error {
				for _, id := range ids {
					if err := store.Delete(ctx, id); err != nil {
						return fmt.Errorf("delete %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}
}
