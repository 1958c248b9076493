package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows    []TimelineRow
	err     error
	lastQry Query
}

func (s *stubTimelineRepo) Timeline(ctx context.Context, q Query) ([]TimelineRow, error) {
	s.lastQry = q
	if s.err != nil {
		return nil, s.err
	}
	if q.Limit > 0 && len(s.rows) > q.Limit {
		return s.rows[:q.Limit], nil
	}
	return s.rows, nil
}

func mockRow(id int64, at, action, entity, entityID string) TimelineRow {
	ts, _ := time.Parse(time.RFC3339, at)
	return TimelineRow{ID: id, At: ts, ActorID: 1, ActorEmail: "admin@fieldops.local", Action: action, Entity: entity, EntityID: entityID}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		mockRow(3, "2026-03-10T10:00:00Z", "role.update", "role", "a"),
		mockRow(2, "2026-03-09T09:00:00Z", "user.assign_role", "user", "7"),
		mockRow(1, "2026-03-08T08:00:00Z", "role.create", "role", "a"),
	}}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Entity:   " role ",
		Page:     2,
		PageSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 3, result.Paging.NextPage)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 2, repo.lastQry.Offset)
	require.Equal(t, 3, repo.lastQry.Limit)
	require.Equal(t, "role", repo.lastQry.Entity)
}

func TestServiceTimelineDefaults(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.NotNil(t, result.Rows)
	require.Empty(t, result.Rows)
	require.Equal(t, 1, result.Paging.Page)
	require.Equal(t, maxPageSize, result.Paging.PageSize)
	require.False(t, result.Paging.HasNext)
	require.Zero(t, result.Paging.PrevPage)
	require.Equal(t, 0, repo.lastQry.Offset)
	require.Equal(t, maxPageSize+1, repo.lastQry.Limit)
}

func TestServiceExport(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{mockRow(1, "2026-03-08T08:00:00Z", "role.delete", "role", "a")}}
	svc := NewService(repo)

	rows, err := svc.Export(context.Background(), TimelineFilters{Action: "role.delete", ActorID: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, maxExportRows, repo.lastQry.Limit)
	require.Equal(t, int64(1), repo.lastQry.ActorID)
}

func TestServiceErrors(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewService(nil).Export(context.Background(), TimelineFilters{})
	require.ErrorIs(t, err, ErrNotConfigured)

	boom := errors.New("query failed")
	_, err = NewService(&stubTimelineRepo{err: boom}).Timeline(context.Background(), TimelineFilters{})
	require.ErrorIs(t, err, boom)
}

func TestWriteCSV(t *testing.T) {
	row := mockRow(5, "2026-03-08T08:00:00Z", "user.assign_role", "user", "7")
	row.Meta = map[string]any{"role_id": "b5f0"}
	data, err := WriteCSV([]TimelineRow{row})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "id,at,actor_id,actor_email,action,entity,entity_id,meta", lines[0])
	require.Equal(t, `5,2026-03-08T08:00:00Z,1,admin@fieldops.local,user.assign_role,user,7,"{""role_id"":""b5f0""}"`, lines[1])

	data, err = WriteCSV(nil)
	require.NoError(t, err)
	require.Equal(t, "id,at,actor_id,actor_email,action,entity,entity_id,meta\n", string(data))
}
