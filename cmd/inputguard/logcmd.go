package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/daemon"
	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/infra"
)

var (
	logCategory string
	logApp      string
	logSince    time.Duration
	logOlder    time.Duration
	logJSON     bool
)

func newLogCmd() *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect and manage the detected activity log",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List detected activities, newest first",
		RunE: withStore(func(ctx context.Context, store *infra.ActivityLog, args []string) error {
			items := store.ListAll()
			switch {
			case logCategory != "":
				items = store.FilterByCategory(logCategory)
			case logApp != "":
				items = store.FilterByApp(logApp)
			case logSince > 0:
				items = store.FilterSince(time.Now().Add(-logSince))
			}
			return printActivities(items)
		}),
	}
	listCmd.Flags().StringVar(&logCategory, "category", "", "Only this category (e.g. PRIVACY_VIOLATION)")
	listCmd.Flags().StringVar(&logApp, "app", "", "Only this app package")
	listCmd.Flags().DurationVar(&logSince, "since", 0, "Only activities newer than this (e.g. 24h)")
	listCmd.Flags().BoolVar(&logJSON, "json", false, "Output as JSON")

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Count detected activities",
		RunE: withStore(func(ctx context.Context, store *infra.ActivityLog, args []string) error {
			if logCategory != "" {
				fmt.Println(store.CountByCategory(logCategory))
				return nil
			}
			fmt.Println(store.Count())
			return nil
		}),
	}
	countCmd.Flags().StringVar(&logCategory, "category", "", "Only this category")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete activities older than --older-than",
		RunE: withStore(func(ctx context.Context, store *infra.ActivityLog, args []string) error {
			if logOlder <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			before := store.Count()
			if err := store.DeleteOlderThan(ctx, time.Now().Add(-logOlder)); err != nil {
				return err
			}
			fmt.Printf("Pruned %d activities\n", before-store.Count())
			return nil
		}),
	}
	pruneCmd.Flags().DurationVar(&logOlder, "older-than", 30*24*time.Hour, "Age cutoff")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every activity",
		RunE: withStore(func(ctx context.Context, store *infra.ActivityLog, args []string) error {
			if err := store.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Println("Activity log cleared")
			return nil
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one activity",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, store *infra.ActivityLog, args []string) error {
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		}),
	}

	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "List distinct categories",
		RunE: withStore(func(ctx context.Context, store *infra.ActivityLog, args []string) error {
			for _, c := range store.Categories() {
				fmt.Printf("%-24s %-28s %d\n", c, domain.Category(c).Label(), store.CountByCategory(c))
			}
			return nil
		}),
	}

	appsCmd := &cobra.Command{
		Use:   "apps",
		Short: "List distinct app names",
		RunE: withStore(func(ctx context.Context, store *infra.ActivityLog, args []string) error {
			for _, a := range store.Apps() {
				fmt.Println(a)
			}
			return nil
		}),
	}

	logCmd.AddCommand(listCmd, countCmd, pruneCmd, clearCmd, deleteCmd, categoriesCmd, appsCmd)
	return logCmd
}

type storeFunc func(ctx context.Context, store *infra.ActivityLog, args []string) error

// withStore opens the configured activity log for the duration of fn.
func withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, backend, err := daemon.OpenStore(cfg.Store, zap.NewNop())
		if err != nil {
			return err
		}
		defer backend.Close()
		return fn(cmd.Context(), store, args)
	}
}

func printActivities(items []domain.DetectedActivity) error {
	if logJSON {
		data, err := infra.EncodeActivities(items)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}

	if len(items) == 0 {
		fmt.Println("No detected activities")
		return nil
	}
	for _, a := range items {
		fmt.Printf("%s  %-24s %-20s %.2f  %s\n",
			a.DetectedAt().Format(time.RFC3339),
			domain.Category(a.Category).Label(),
			a.AppName,
			a.Confidence,
			a.ID)
		fmt.Printf("    %s\n", quote(a.Content))
	}
	return nil
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(b)
}
