package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/catalog"
	"github.com/warp/benefit-engine/generic"
)

type resolutionOutput struct {
	Permitted bool   `json:"permitted"`
	Outcome   string `json:"outcome"`
	PeriodID  string `json:"periodId,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type allocationOutput struct {
	Requested     generic.Amount `json:"requested"`
	Considered    generic.Amount `json:"considered"`
	NotConsidered generic.Amount `json:"notConsidered"`
	Remaining     generic.Amount `json:"remaining"`
	Permitted     bool           `json:"permitted"`
	BlockedAfter  bool           `json:"blockedAfter"`
	Code          string         `json:"code"`
	Message       string         `json:"message"`
}

func newResolveCmd() *cobra.Command {
	var (
		path   string
		period string
		at     string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which period a claim made at --at lands in",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = parsed
			}
			c, err := catalog.LoadFile(path)
			if err != nil {
				return err
			}
			target, next, err := c.Period(benefit.PeriodID(period))
			if err != nil && !generic.IsNotFound(err) {
				return err
			}

			r := benefit.Resolve(now, target, next)
			return printJSON(cmd.OutOrStdout(), resolutionOutput{
				Permitted: r.Permitted,
				Outcome:   string(r.Outcome),
				PeriodID:  string(r.PeriodID),
				Code:      r.Code,
				Message:   r.Message,
			})
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "catalog.yaml", "catalog file")
	cmd.Flags().StringVar(&period, "period", "", "target period id")
	cmd.Flags().StringVar(&at, "at", "", "submission instant, RFC3339 (default now)")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newAllocateCmd() *cobra.Command {
	var requested, ceiling, used string
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Show the split of a request against a ceiling",
		RunE: func(cmd *cobra.Command, args []string) error {
			amounts := make([]generic.Amount, 3)
			for i, raw := range []string{requested, ceiling, used} {
				a, err := generic.ParseAmount(raw)
				if err != nil {
					return err
				}
				amounts[i] = a
			}

			a := benefit.Allocate(amounts[0], amounts[1], amounts[2])
			return printJSON(cmd.OutOrStdout(), allocationOutput{
				Requested:     a.Requested,
				Considered:    a.Considered,
				NotConsidered: a.NotConsidered,
				Remaining:     a.Remaining,
				Permitted:     a.Permitted,
				BlockedAfter:  a.BlockedAfter,
				Code:          a.Code,
				Message:       a.Message,
			})
		},
	}
	cmd.Flags().StringVar(&requested, "requested", "", "requested amount")
	cmd.Flags().StringVar(&ceiling, "ceiling", "", "benefit ceiling")
	cmd.Flags().StringVar(&used, "used", "0", "amount already used in the period")
	_ = cmd.MarkFlagRequired("requested")
	_ = cmd.MarkFlagRequired("ceiling")
	return cmd
}
