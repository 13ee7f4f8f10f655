package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/renderjobs/internal/data"
	"github.com/target/renderjobs/internal/domain/model"
)

type jobStatusOptions struct {
	JobID string
}

type sweepOutboxOptions struct {
	Timeout time.Duration
	DryRun  bool
}

type eventDelivery struct {
	Event    *model.OutboxEvent
	Delivery *model.OutboxDelivery
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobStatusFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, 30*time.Second, func(ctx context.Context, db *sql.DB) error {
		job, err := data.NewJobRepo(db, data.RepoConfig{}).GetByID(ctx, opts.JobID)
		if errors.Is(err, data.ErrJobNotFound) {
			return fmt.Errorf("job %s not found", opts.JobID)
		}
		if err != nil {
			return err
		}

		events, err := loadEventDeliveries(ctx, data.NewOutboxRepo(db, data.RepoConfig{}), job.ID)
		if err != nil {
			return err
		}
		return printJobStatus(os.Stdout, job, events)
	})
}

func loadEventDeliveries(ctx context.Context, repo *data.OutboxRepo, jobID string) ([]eventDelivery, error) {
	events, err := repo.ListByAggregate(ctx, model.AggregateTypeJob, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]eventDelivery, 0, len(events))
	for _, ev := range events {
		d, err := repo.GetDelivery(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, eventDelivery{Event: ev, Delivery: d})
	}
	return out, nil
}

func printJobStatus(w io.Writer, job *model.Job, events []eventDelivery) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Job", job.ID},
		{"Project", job.ProjectID},
		{"Type", string(job.Type)},
		{"Status", string(job.Status)},
		{"Requested", formatTime(&job.RequestedAt)},
		{"Updated", formatTime(&job.UpdatedAt)},
		{"Completed", formatTime(job.CompletedAt)},
		{"Output", deref(job.OutputURL)},
		{"Error", formatJobError(job)},
	}
	for _, r := range rows {
		if err := writef(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(events) == 0 {
		return writef(w, "\nNo outbox events (already swept).\n")
	}
	if err := writef(w, "\nOutbox events:\n"); err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "EVENT\tTYPE\tROUTING KEY\tCREATED\tSTREAM ID\tPUBLISHED\n"); err != nil {
		return err
	}
	for _, ed := range events {
		streamID, published := "pending", "-"
		if ed.Delivery != nil {
			streamID = ed.Delivery.StreamID
			published = formatTime(&ed.Delivery.PublishedAt)
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ed.Event.ID, ed.Event.EventType, ed.Event.RoutingKey,
			formatTime(&ed.Event.CreatedAt), streamID, published); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatJobError(job *model.Job) string {
	code, msg := deref(job.ErrorCode), deref(job.ErrorMessage)
	switch {
	case code == "":
		return "-"
	case msg == "":
		return code
	default:
		return code + ": " + msg
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func runSweepOutbox(cmdCtx *commandContext, args []string) error {
	opts, err := parseSweepOutboxFlags(args)
	if err != nil {
		return err
	}
	outbox := cmdCtx.Config.Outbox

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		if opts.DryRun {
			var n int
			cutoff := time.Now().Add(-outbox.Retention)
			if err := db.QueryRowContext(ctx,
				`SELECT count(*) FROM outbox_events WHERE created_at < $1`, cutoff).Scan(&n); err != nil {
				return fmt.Errorf("count expired outbox events: %w", err)
			}
			return writef(os.Stdout, "Would delete %d outbox events older than %s.\n", n, outbox.Retention)
		}

		deleted, err := data.NewOutboxRepo(db, data.RepoConfig{Logger: cmdCtx.Logger}).
			DeleteOlderThan(ctx, outbox.Retention, outbox.SweepBatchSize)
		if err != nil {
			return err
		}
		return writef(os.Stdout, "Deleted %d outbox events older than %s.\n", deleted, outbox.Retention)
	})
}

func parseJobStatusFlags(args []string) (jobStatusOptions, error) {
	fs := flag.NewFlagSet("job-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobStatusOptions
	fs.StringVar(&opts.JobID, "job-id", "", "Job ID to inspect (required)")

	if err := fs.Parse(args); err != nil {
		return jobStatusOptions{}, err
	}

	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.JobID == "" {
		return jobStatusOptions{}, errors.New("--job-id is required")
	}
	return opts, nil
}

func parseSweepOutboxFlags(args []string) (sweepOutboxOptions, error) {
	fs := flag.NewFlagSet("sweep-outbox", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := sweepOutboxOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for the sweep")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Count expired events without deleting")

	if err := fs.Parse(args); err != nil {
		return sweepOutboxOptions{}, err
	}
	if opts.Timeout <= 0 {
		return sweepOutboxOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}
