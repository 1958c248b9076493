package e2e

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/rbac"
	"github.com/fieldops/fieldops/internal/roles"
	"github.com/fieldops/fieldops/jobs"
)

// seededStore mirrors what the seed command writes, plus one custom role with
// a capability outside the vocabulary and two users who hold no role.
func seededStore(t *testing.T) *roles.MemoryRepository {
	t.Helper()
	ctx := context.Background()
	store := roles.NewMemoryRepository()
	var userID int64
	for _, seed := range rbac.BootstrapRoles() {
		role, err := store.CreateRole(ctx, rbac.Role{ID: uuid.New(), Name: seed.Name, IsAdmin: seed.IsAdmin, Permissions: seed.Permissions})
		require.NoError(t, err)
		userID++
		require.NoError(t, store.AddUser(userID, &role.ID))
	}
	_, err := store.CreateRole(ctx, rbac.Role{
		ID:          uuid.New(),
		Name:        "Payroll Clerk",
		Permissions: rbac.Document{"payroll": rbac.Group{"approve": rbac.Leaf(true)}},
	})
	require.NoError(t, err)
	require.NoError(t, store.AddUser(userID+1, nil))
	require.NoError(t, store.AddUser(userID+2, nil))
	return store
}

func TestRoleAuditOverSeededStore(t *testing.T) {
	store := seededStore(t)
	reg := prometheus.NewRegistry()
	job := jobs.NewRoleAuditJob(store, store, nil, jobmetrics.NewMetrics(reg))

	task, err := jobs.NewRoleAuditTask("cron")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, 0.0, gaugeValue(t, families, "fieldops_role_document_findings", "invalid_entries"))
	require.Equal(t, 1.0, gaugeValue(t, families, "fieldops_role_document_findings", "unknown_capabilities"))
	require.Equal(t, 2.0, gaugeValue(t, families, "fieldops_role_document_findings", "users_without_role"))
	require.Equal(t, 1.0, counterValue(t, families, "fieldops_jobs_total", map[string]string{"job": jobs.TaskRoleAudit, "status": "success"}))
}

func TestRoleAuditSeesRoleChanges(t *testing.T) {
	store := seededStore(t)
	reg := prometheus.NewRegistry()
	job := jobs.NewRoleAuditJob(store, store, nil, jobmetrics.NewMetrics(reg))
	ctx := context.Background()

	report, err := job.Run(ctx, jobs.RoleAuditPayload{Trigger: "manual"})
	require.NoError(t, err)
	require.Equal(t, len(rbac.BootstrapRoles())+1, report.Roles)
	require.Equal(t, 1, report.UnknownEntries)

	list, err := store.ListRoles(ctx)
	require.NoError(t, err)
	for _, role := range list {
		if role.Name != "Payroll Clerk" {
			continue
		}
		role.Permissions = rbac.Document{"reports": rbac.Group{"read": rbac.Leaf(true)}}
		_, err := store.UpdateRole(ctx, role)
		require.NoError(t, err)
	}

	report, err = job.Run(ctx, jobs.RoleAuditPayload{Trigger: "manual"})
	require.NoError(t, err)
	require.Zero(t, report.UnknownEntries)
	require.Empty(t, report.Findings)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, 0.0, gaugeValue(t, families, "fieldops_role_document_findings", "unknown_capabilities"))
	require.Equal(t, 2.0, counterValue(t, families, "fieldops_jobs_total", map[string]string{"job": jobs.TaskRoleAudit, "status": "success"}))
}

func gaugeValue(t *testing.T, families []*dto.MetricFamily, name, kind string) float64 {
	t.Helper()
	return find(t, families, name, map[string]string{"kind": kind})[0].GetGauge().GetValue()
}

func counterValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	return find(t, families, name, labels)[0].GetCounter().GetValue()
}

func find(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) []*dto.Metric {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var out []*dto.Metric
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				out = append(out, metric)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return nil
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		val, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != val {
			return false
		}
		matched++
	}
	return matched == len(labels)
}
