package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/app"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
)

// RepairOptions selects what to repair.
type RepairOptions struct {
	Guest       string
	Collections []string
	Delay       time.Duration
	JSON        bool
}

// NewRepairCommand re-propagates guest names to every denormalized copy.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RepairOptions{}

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Rewrite drifted guest name copies",
		Long: "Re-propagates each guest's current name. Copies already in sync are not written, " +
			"so repeated runs are safe. Interrupting a run keeps the repairs made so far.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("delay") {
				cfg.BulkRepairDelay = opts.Delay
			}
			logger, err := app.NewLogger(cfg)
			if err != nil {
				return err
			}

			a := app.New(cfg, logger)
			if err := a.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := a.Stop(context.WithoutCancel(ctx)); err != nil {
					logger.WithError(err).Error("Failed to stop dependencies")
				}
			}()

			var results []*models.PropagationResult
			if opts.Guest != "" {
				result, repairErr := a.Guests.RepairGuest(ctx, opts.Guest, opts.Collections)
				if result != nil {
					results = append(results, result)
				}
				err = repairErr
			} else {
				results, err = a.Guests.BulkRepairAllGuests(ctx)
			}

			if writeErr := writeResults(cmd.OutOrStdout(), results, opts.JSON); writeErr != nil {
				return writeErr
			}
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("repair interrupted after %d guests: %w", len(results), err)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Guest, "guest", "", "repair a single guest by phone number")
	cmd.Flags().StringSliceVar(&opts.Collections, "collections", nil, "with --guest, only these collections")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 0, "pause between guests (overrides BULK_REPAIR_DELAY)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print every propagation result as JSON")

	return cmd
}

func writeResults(w io.Writer, results []*models.PropagationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	var total models.UpdatedRecords
	failed := 0
	for _, r := range results {
		total.Rewards += r.UpdatedRecords.Rewards
		total.Receipts += r.UpdatedRecords.Receipts
		total.Other += r.UpdatedRecords.Other
		if !r.Success {
			failed++
			if _, err := fmt.Fprintf(w, "%s: %s\n", r.GuestID, r.Summary()); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "guests: %d, failed: %d, records updated: %d (rewards %d, receipts %d, other %d)\n",
		len(results), failed, total.Total(), total.Rewards, total.Receipts, total.Other)
	return err
}
