package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nui/internal/store"
)

func newStoreCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the local entry store",
	}

	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Store directory (default: store.path from config)")

	open := func() (*store.Store, error) {
		if dir == "" {
			dir = a.cfg.Store.Path
		}

		return store.Open(dir)
	}

	cmd.AddCommand(
		newStoreListCmd(open),
		newStoreVerifyCmd(a, open),
		newStoreBatchesCmd(open),
	)

	return cmd
}

type storeOpener func() (*store.Store, error)

func newStoreListCmd(open storeOpener) *cobra.Command {
	var (
		limit  int
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			for _, e := range entries {
				if err := printJSON(cmd.OutOrStdout(), e, pretty); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to print, 0 for all")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON records")

	return cmd
}

func newStoreVerifyCmd(a *app, open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-derive the hash of every stored entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			total, mismatches, err := s.VerifyAll(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range mismatches {
				fmt.Fprintf(out, "❌ %s: %v\n", m.Hash, m.Err)
			}

			a.log.Info("store verified", "path", s.Path(), "entries", total, "mismatches", len(mismatches))

			if len(mismatches) > 0 {
				return fmt.Errorf("%w: %d of %d stored entries", ErrVerifyFailed, len(mismatches), total)
			}

			fmt.Fprintf(out, "✅ %d stored entries verified\n", total)

			return nil
		},
	}
}

func newStoreBatchesCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List the batches that saved entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			batches, err := s.Batches(cmd.Context())
			if err != nil {
				return err
			}

			for _, b := range batches {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\n",
					b.ID, b.CreatedAt.UTC().Format(time.RFC3339), b.Source, b.Entries)
			}

			return nil
		},
	}
}
