package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/insider-filings-crawler/internal/api"
	"github.com/JakeFAU/insider-filings-crawler/internal/app"
	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
	uuidgen "github.com/JakeFAU/insider-filings-crawler/internal/id/uuid"
	"github.com/JakeFAU/insider-filings-crawler/internal/scheduler"
	"github.com/JakeFAU/insider-filings-crawler/internal/server"
)

// runIDs names each crawl run. It is a variable so tests can replace it.
var runIDs edgar.IDGenerator = uuidgen.New()

type crawlOptions struct {
	from  string
	to    string
	batch int
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls EDGAR day by day from --from",
		Long: `Walks the EDGAR daily index one day at a time starting at --from. Without
--to the crawl follows the feed forever, waiting for each new day to be
published; with --to it stops before that day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.from, "from", "", "first day to crawl (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "stop before this day (YYYY-MM-DD); omit to follow the feed")
	cmd.Flags().IntVar(&opts.batch, "batch", 0, fmt.Sprintf("documents per sub-batch, at most %d (default crawl.batch_size)", edgar.MaxRequestsPerSecond))
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// dates parses the flag values. A zero stop means follow forever.
func (o crawlOptions) dates() (civil.Date, civil.Date, error) {
	from, err := civil.ParseDate(o.from)
	if err != nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: --from %q: %w", edgar.ErrConfig, o.from, err)
	}
	var stop civil.Date
	if o.to != "" {
		stop, err = civil.ParseDate(o.to)
		if err != nil {
			return civil.Date{}, civil.Date{}, fmt.Errorf("%w: --to %q: %w", edgar.ErrConfig, o.to, err)
		}
		if !from.Before(stop) {
			return civil.Date{}, civil.Date{}, fmt.Errorf("%w: --to must be after --from", edgar.ErrConfig)
		}
	}
	if o.batch < 0 || o.batch > edgar.MaxRequestsPerSecond {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: --batch must be between 1 and %d",
			edgar.ErrConfig, edgar.MaxRequestsPerSecond)
	}
	return from, stop, nil
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	from, stop, err := opts.dates()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer a.Close()

	runID, err := runIDs.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	sched, err := a.Crawler(ctx, app.CrawlOptions{RunID: runID, BatchSize: opts.batch})
	if err != nil {
		return err
	}

	if e.cfg.Server.Enabled {
		handler := api.NewServer(api.Options{
			Status:      sched,
			Checkpoints: a.Checkpoints(),
			Ready:       a.ReadyChecks(),
			Logger:      e.logger.Named("api"),
		}).Handler()
		srvCtx, stopServer := context.WithCancel(ctx)
		srvDone := make(chan error, 1)
		go func() {
			srvDone <- server.Serve(srvCtx, fmt.Sprintf(":%d", e.cfg.Server.Port), handler, e.logger.Named("http"), nil)
		}()
		defer func() {
			stopServer()
			if err := <-srvDone; err != nil {
				e.logger.Warn("status server stopped with error", zap.Error(err))
			}
		}()
	}

	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("crawl starting", zap.Stringer("from", from), zap.Stringer("to", stop))
	cur := scheduler.NewCursor(from)
	err = sched.Run(ctx, cur, stop)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("crawl interrupted", zap.Stringer("cursor", cur.Date))
		return nil
	case err != nil:
		return fmt.Errorf("crawl at %s: %w", cur.Date, err)
	}
	logger.Info("crawl finished", zap.Stringer("cursor", cur.Date))
	return nil
}
