package main

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	"github.com/fairyhunter13/confms-ai-service/internal/service/featureflags"
)

type flagStore interface {
	Seed(ctx context.Context, conferences []string, flags map[string]map[string]bool) (int, error)
	List(ctx context.Context, conferenceID string) ([]domain.FeatureFlag, error)
	Set(ctx context.Context, conferenceID, feature string, enabled bool) error
}

// openFlags is replaced in tests.
var openFlags = func(ctx context.Context) (flagStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){pool.Close}

	// the cache is optional; without it running servers pick changes up on TTL expiry
	var cache redis.Cmdable
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err == nil {
			cache = rdb
			closers = append(closers, func() { _ = rdb.Close() })
		} else {
			slog.Warn("redis unreachable; flag cache not updated", slog.Any("error", err))
			_ = rdb.Close()
		}
	}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return featureflags.NewManager(postgres.NewFlagRepo(pool), cache, cfg.FeatureFlagsCacheTTL), closeAll, nil
}

func flagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Manage per-conference feature flags",
	}
	cmd.AddCommand(flagsSeedCmd(), flagsListCmd(), flagsSetCmd())
	return cmd
}

func flagsSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply a YAML flag seed file",
		Long: `Apply a YAML flag seed file:

  conferences:
    conf-2026:
      grammar_check: true
      email_draft: false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed, err := config.LoadFlagSeed(file)
			if err != nil {
				return err
			}
			store, closeFn, err := openFlags(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			n, err := store.Seed(cmd.Context(), seed.Conferences(), seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d flag(s) across %d conference(s)\n", n, len(seed))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func flagsListCmd() *cobra.Command {
	var conference string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show every feature and its state for a conference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := openFlags(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			flags, err := store.List(cmd.Context(), conference)
			if err != nil {
				return err
			}
			state := make(map[string]bool, len(flags))
			for _, f := range flags {
				state[f.Feature] = f.Enabled
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FEATURE\tENABLED")
			for _, name := range domain.AvailableFeatures {
				fmt.Fprintf(tw, "%s\t%t\n", name, state[name])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&conference, "conference", "c", "", "conference id")
	_ = cmd.MarkFlagRequired("conference")
	return cmd
}

func flagsSetCmd() *cobra.Command {
	var (
		conference string
		feature    string
		enabled    bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Enable or disable one feature for a conference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !domain.IsKnownFeature(feature) {
				return fmt.Errorf("unknown feature %q", feature)
			}
			store, closeFn, err := openFlags(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if err := store.Set(cmd.Context(), conference, feature, enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s enabled=%t\n", conference, feature, enabled)
			return nil
		},
	}
	cmd.Flags().StringVarP(&conference, "conference", "c", "", "conference id")
	cmd.Flags().StringVar(&feature, "feature", "", "feature name")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "desired state")
	_ = cmd.MarkFlagRequired("conference")
	_ = cmd.MarkFlagRequired("feature")
	return cmd
}
