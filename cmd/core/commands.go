package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/tripplanner/backend/cmd/desktop/handlers"
	"github.com/kimhsiao/tripplanner/backend/internal/app"
	"github.com/kimhsiao/tripplanner/backend/internal/config"
	apperrors "github.com/kimhsiao/tripplanner/backend/internal/errors"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
	"github.com/kimhsiao/tripplanner/backend/internal/sync/queue"
	"github.com/kimhsiao/tripplanner/backend/internal/worker"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tripcore",
		Short:         "Trip planner offline cache and sync agent",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("TRIP_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before TRIP_* overrides")

	root.AddCommand(
		newServeCmd(opts),
		newInstallCmd(opts),
		newActivateCmd(opts),
		newDrainCmd(opts),
		newStatusCmd(opts),
		newFavoriteCmd(opts),
		newPlansCmd(opts),
	)
	return root
}

// withApp loads configuration, builds the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	// Logs go to stderr so command output stays parseable.
	logging.Init(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Log.Level), cfg.Log.Pretty)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local server and background sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, handlers.Run)
		},
	}
}

func newInstallCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Precache the app shell and activate the current cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Install(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"state": a.Interceptor.State(),
					"cache": a.Interceptor.CacheName(),
				})
			})
		},
	}
}

func newActivateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Delete cache namespaces other than the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if _, err := a.Worker.Dispatch(ctx, worker.Event{Kind: worker.KindActivate}).Wait(ctx); err != nil {
					return err
				}
				names, err := a.Cache.Names(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"caches": names})
			})
		},
	}
}

func newDrainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Send queued favorite changes to the server once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				res, err := a.Sync(ctx).Wait(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res.Value)
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending syncs, queue counts and the last sync time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				status, err := a.Plans.SyncStatus(ctx)
				if err != nil {
					return err
				}
				stats, err := queue.GetStats(ctx, a.Queue)
				if err != nil {
					return err
				}
				out := map[string]interface{}{
					"pendingSyncs": status.PendingSyncs,
					"queue":        stats,
				}
				if t, ok, err := a.Plans.LastSync(ctx); err == nil && ok {
					out["lastSync"] = t
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func newFavoriteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <plan-id> <true|false>",
		Short: "Set a plan's favorite flag and sync it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fav, err := strconv.ParseBool(args[1])
			if err != nil {
				return apperrors.Wrap(apperrors.ErrInvalid, "favorite flag must be true or false", err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				change, f, err := a.Favorites.ToggleFavorite(ctx, args[0], fav)
				if err != nil {
					return err
				}
				out := map[string]interface{}{"change": change}
				if f != nil {
					res, err := f.Wait(ctx)
					if err != nil {
						out["syncError"] = err.Error()
					} else {
						out["sync"] = res.Value
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func newPlansCmd(opts *rootOptions) *cobra.Command {
	plans := &cobra.Command{
		Use:   "plans",
		Short: "Manage cached plans",
	}

	plans.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached plan ids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
					ids, err := a.Plans.ListPlans(ctx)
					if err != nil {
						return err
					}
					for _, id := range ids {
						fmt.Fprintln(cmd.OutOrStdout(), id)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "get <plan-id>",
			Short: "Print a cached plan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
					plan, err := a.Plans.GetPlan(ctx, args[0])
					if err != nil {
						return err
					}
					if plan == nil {
						return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("plan %s is not cached", args[0]))
					}
					return printJSON(cmd.OutOrStdout(), plan)
				})
			},
		},
		&cobra.Command{
			Use:   "rm <plan-id>",
			Short: "Remove a cached plan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"removed": a.Plans.RemovePlan(ctx, args[0]),
					})
				})
			},
		},
		&cobra.Command{
			Use:   "pull <plan-id>",
			Short: "Fetch a plan from the server and cache it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
					plan, err := a.API.GetPlan(ctx, args[0])
					if err != nil {
						return err
					}
					if err := a.Plans.CachePlan(ctx, plan); err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), plan)
				})
			},
		},
	)
	return plans
}
