package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitshopapp/sessionstore/internal/backend"
	"github.com/gitshopapp/sessionstore/internal/config"
	"github.com/gitshopapp/sessionstore/internal/logging"
	"github.com/gitshopapp/sessionstore/internal/session"
)

// storeOpener returns a store and a function that releases it.
type storeOpener func(ctx context.Context) (*session.Store, func(), error)

func newRootCmd(open storeOpener) *cobra.Command {
	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Administer the persisted session table",
		Long:          `sessionctl migrates, inspects and prunes the session table using the same configuration as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(open),
		newCountCmd(open),
		newCleanupCmd(open),
		newClearCmd(open),
		newShowCmd(open),
		newDeleteCmd(open),
	)
	return root
}

func openStore(ctx context.Context) (*session.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger, logCloser, err := logging.New(os.Stderr, cfg.Logging())
	if err != nil {
		return nil, nil, err
	}

	b, err := backend.Open(ctx, cfg.Backend(), logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, fmt.Errorf("failed to open session backend: %w", err)
	}

	store, err := session.New(b, cfg.Session(), session.WithLogger(logger))
	if err != nil {
		_ = b.Close()
		_ = logCloser.Close()
		return nil, nil, err
	}

	release := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close session backend", "error", err)
		}
		_ = logCloser.Close()
	}
	return store, release, nil
}

// withStore opens the store for the duration of fn.
func withStore(cmd *cobra.Command, open storeOpener, fn func(ctx context.Context, store *session.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx, store)
}
