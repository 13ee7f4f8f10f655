package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/target/renderjobs/config"
	"github.com/target/renderjobs/internal/data"
	"github.com/target/renderjobs/internal/domain/model"
	"github.com/target/renderjobs/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB   *sql.DB
	jobs *service.JobService
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB, jobs config.JobsConfig) Services {
	jobRepo := data.NewJobRepo(db, data.RepoConfig{})
	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo:       jobRepo,
		RoutingKey: jobs.RequestedRoutingKey,
	})
	return Services{DB: db, jobs: jobService}
}

// Project is a demo project with the contents rendered for it.
type Project struct {
	ID       string
	Name     string
	Contents []Content
}

// Content is a demo content row and the job type requested for it.
type Content struct {
	ID      string
	JobType model.JobType
	Prompt  string
}

// DefaultProjects returns the fixed development data set.
func DefaultProjects() []Project {
	return []Project{
		{
			ID:   "demo-project",
			Name: "Demo storefront",
			Contents: []Content{
				{ID: "demo-hero-image", JobType: model.JobTypeImageGeneration, Prompt: "a bright product hero shot"},
				{ID: "demo-spring-banner", JobType: model.JobTypeBannerGeneration, Prompt: "spring sale, 30% off"},
			},
		},
		{
			ID:   "demo-mockups",
			Name: "Mockup samples",
			Contents: []Content{
				{ID: "demo-mug-mockup", JobType: model.JobTypeMockupComposition, Prompt: "logo on a white mug"},
				{ID: "demo-teaser-video", JobType: model.JobTypeVideoGeneration, Prompt: "five second product teaser"},
			},
		},
	}
}

// Run executes the full development seeding workflow against the provided DB.
// Rows that already exist are left alone. A sample job is requested for every
// content whose project has no jobs yet.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	for _, p := range DefaultProjects() {
		if err := seedProject(ctx, svcs.DB, p, logger); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed project", "project_id", p.ID, "error", err)
			}
			failures++
			continue
		}
		failures += seedJobs(ctx, svcs, p, logger)
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedProject(ctx context.Context, db *sql.DB, p Project, logger *slog.Logger) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO projects (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	logInsert(ctx, logger, res, "project", p.ID)

	for _, c := range p.Contents {
		res, err = db.ExecContext(ctx,
			`INSERT INTO contents (id, project_id) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, c.ID, p.ID)
		if err != nil {
			return fmt.Errorf("insert content %s: %w", c.ID, err)
		}
		logInsert(ctx, logger, res, "content", c.ID)
	}
	return nil
}

func logInsert(ctx context.Context, logger *slog.Logger, res sql.Result, kind, id string) {
	if logger == nil {
		return
	}
	msg := kind + " already exists"
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		msg = "created " + kind
	}
	logger.InfoContext(ctx, msg, "id", id)
}

func seedJobs(ctx context.Context, svcs Services, p Project, logger *slog.Logger) int {
	var existing int
	if err := svcs.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM jobs WHERE project_id = $1`, p.ID).Scan(&existing); err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to count project jobs", "project_id", p.ID, "error", err)
		}
		return 1
	}
	if existing > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "project already has jobs", "project_id", p.ID, "jobs", existing)
		}
		return 0
	}

	failures := 0
	for _, c := range p.Contents {
		payload, err := json.Marshal(map[string]string{"contentId": c.ID, "prompt": c.Prompt})
		if err != nil {
			failures++
			continue
		}
		job, err := svcs.jobs.RequestJob(ctx, &model.CreateJobRequest{
			ProjectID: p.ID,
			Type:      c.JobType,
			Payload:   payload,
		})
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to request sample job", "content_id", c.ID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "requested sample job", "job_id", job.ID, "content_id", c.ID, "type", c.JobType)
		}
	}
	return failures
}
