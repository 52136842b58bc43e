package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deal-briefing/internal/briefing"
	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/internal/store"
)

var (
	briefLimit     int
	briefEmailDays int
	briefMaxEmails int
	briefJSON      bool
	briefVerbose   bool
	briefXLSX      string
	briefSave      bool
)

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Rank open deals and print the briefing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initBriefing(ctx, "brief")
		if err != nil {
			return err
		}
		defer env.Close()

		if briefSave && env.Store == nil {
			return eris.New("--save requires store.driver sqlite or postgres")
		}

		req := briefRequest(cmd)
		var st store.Store
		if briefSave {
			st = env.Store
		}

		a, err := runBriefing(ctx, env.Service, st, req, runTimeout())
		if err != nil {
			return err
		}

		if briefXLSX != "" {
			if err := writeXLSXFile(briefXLSX, a); err != nil {
				return err
			}
			zap.L().Info("workbook written", zap.String("path", briefXLSX))
		}

		if briefJSON {
			return briefing.RenderJSON(os.Stdout, a)
		}
		return briefing.RenderText(os.Stdout, a, cfg.Pipedrive.Domain)
	},
}

// briefRequest merges flags over the configured defaults.
func briefRequest(cmd *cobra.Command) briefing.Request {
	req := briefing.Request{
		Limit:     cfg.Briefing.Limit,
		EmailDays: cfg.Briefing.EmailDays,
		MaxEmails: cfg.Briefing.MaxEmails,
		Verbose:   briefVerbose,
	}
	if cmd.Flags().Changed("limit") {
		req.Limit = briefLimit
	}
	if cmd.Flags().Changed("email-days") {
		req.EmailDays = briefEmailDays
	}
	if cmd.Flags().Changed("max-emails") {
		req.MaxEmails = briefMaxEmails
	}
	return req
}

// runBriefing runs one briefing under timeout (zero for none) and records
// the outcome when st is non-nil. A failed save is logged, never returned.
func runBriefing(ctx context.Context, svc runner, st store.Store, req briefing.Request, timeout time.Duration) (*model.Analysis, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	a, runErr := svc.Run(ctx, req)

	if st != nil {
		run := store.NewRun(storedRequest(req), a, runErr, time.Now())
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := st.SaveRun(saveCtx, run); err != nil {
			zap.L().Error("save briefing run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return a, runErr
}

func storedRequest(req briefing.Request) model.BriefingRequest {
	return model.BriefingRequest{
		Limit:     req.Limit,
		EmailDays: req.EmailDays,
		MaxEmails: req.MaxEmails,
		Verbose:   req.Verbose,
	}
}

func writeXLSXFile(path string, a *model.Analysis) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := briefing.WriteXLSX(f, a, cfg.Pipedrive.Domain); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	return nil
}

func init() {
	// Unset bounds fall back to briefing.* in config; see briefRequest.
	briefCmd.Flags().IntVar(&briefLimit, "limit", 0, "number of open deals to analyze (default from config briefing.limit)")
	briefCmd.Flags().IntVar(&briefEmailDays, "email-days", 0, "email lookback window in days (default from config briefing.email_days)")
	briefCmd.Flags().IntVar(&briefMaxEmails, "max-emails", 0, "max emails per contact (default from config briefing.max_emails)")
	briefCmd.Flags().BoolVar(&briefJSON, "json", false, "print the analysis as JSON")
	briefCmd.Flags().BoolVar(&briefVerbose, "verbose", false, "include enrichment diagnostics")
	briefCmd.Flags().StringVar(&briefXLSX, "xlsx", "", "also write the briefing to this .xlsx file")
	briefCmd.Flags().BoolVar(&briefSave, "save", false, "record the run in the history store")
	rootCmd.AddCommand(briefCmd)
}

