package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/rbac"
	"github.com/fieldops/fieldops/internal/roles"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RoleDocumentSource lists stored permission documents without decoding them.
type RoleDocumentSource interface {
	RawDocuments(ctx context.Context) (map[uuid.UUID]roles.RawDocument, error)
}

// RolelessCounter counts active users without a role.
type RolelessCounter interface {
	CountWithoutRole(ctx context.Context) (int, error)
}

// RoleFinding describes one role whose stored document needs attention.
type RoleFinding struct {
	RoleID  uuid.UUID
	Name    string
	Invalid []string
	Unknown []string
}

// RoleAuditReport summarises a role audit run.
type RoleAuditReport struct {
	Roles          int
	UsersWithout   int
	Findings       []RoleFinding
	InvalidEntries int
	UnknownEntries int
}

// RoleAuditJob re-reads every stored role document and reports entries that
// would be rejected on write or that name capabilities outside the vocabulary.
type RoleAuditJob struct {
	Documents RoleDocumentSource
	Users     RolelessCounter
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewRoleAuditJob wires dependencies for the audit handler.
func NewRoleAuditJob(documents RoleDocumentSource, users RolelessCounter, logger *slog.Logger, metrics *jobmetrics.Metrics) *RoleAuditJob {
	return &RoleAuditJob{Documents: documents, Users: users, Logger: logger, Metrics: metrics}
}

// Handle processes TaskRoleAudit tasks.
func (j *RoleAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("role audit: handler not configured")
	}
	var payload RoleAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run executes one audit and returns its report.
func (j *RoleAuditJob) Run(ctx context.Context, payload RoleAuditPayload) (report RoleAuditReport, resultErr error) {
	tracker := j.metrics().Track(TaskRoleAudit)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("trigger", payload.Trigger))
	start := time.Now()

	docs, roleless, err := j.load(ctx)
	if err != nil {
		logger.Error("load role documents", slog.Any("error", err))
		return RoleAuditReport{}, err
	}

	report = Audit(docs)
	report.UsersWithout = roleless

	for _, f := range report.Findings {
		logger.Warn("role document needs attention",
			slog.String("role_id", f.RoleID.String()),
			slog.String("role", f.Name),
			slog.Any("invalid", f.Invalid),
			slog.Any("unknown", f.Unknown),
		)
	}
	if roleless > 0 {
		logger.Info("active users without a role are denied every capability", slog.Int("users", roleless))
	}

	m := j.metrics()
	m.SetRoleFindings("invalid_entries", report.InvalidEntries)
	m.SetRoleFindings("unknown_capabilities", report.UnknownEntries)
	m.SetRoleFindings("users_without_role", roleless)

	logger.Info("completed role audit",
		slog.Int("roles", report.Roles),
		slog.Int("findings", len(report.Findings)),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (j *RoleAuditJob) load(ctx context.Context) (map[uuid.UUID]roles.RawDocument, int, error) {
	if j.Documents == nil {
		return nil, 0, errors.New("role audit: document source not configured")
	}
	var (
		docs     map[uuid.UUID]roles.RawDocument
		roleless int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = j.Documents.RawDocuments(gctx)
		return err
	})
	if j.Users != nil {
		g.Go(func() error {
			var err error
			roleless, err = j.Users.CountWithoutRole(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return docs, roleless, nil
}

// Audit inspects raw documents. Findings are ordered by role name.
func Audit(docs map[uuid.UUID]roles.RawDocument) RoleAuditReport {
	report := RoleAuditReport{Roles: len(docs)}
	for id, raw := range docs {
		doc, dropped := rbac.LoadDocument(raw.JSON)
		if _, err := rbac.ParseDocument(raw.JSON); err != nil && len(dropped) == 0 {
			dropped = []string{"(document)"}
		}
		unknown := rbac.UnknownCapabilities(doc)
		if len(dropped) == 0 && len(unknown) == 0 {
			continue
		}
		sort.Strings(dropped)
		report.Findings = append(report.Findings, RoleFinding{
			RoleID:  id,
			Name:    raw.Name,
			Invalid: dropped,
			Unknown: unknown,
		})
		report.InvalidEntries += len(dropped)
		report.UnknownEntries += len(unknown)
	}
	sort.Slice(report.Findings, func(a, b int) bool {
		return report.Findings[a].Name < report.Findings[b].Name
	})
	return report
}

func (j *RoleAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRoleAudit))
	}
	return slog.Default().With(slog.String("job", TaskRoleAudit))
}

func (j *RoleAuditJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
