package services

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
	apperrors "roster-sync/pkg/errors"
	"roster-sync/pkg/sftpclient"
)

type listOnlyRepo struct {
	members []entities.TeamMember
	filter  dto.TeamMemberExportFilter
}

func (r *listOnlyRepo) IdentitySnapshot(ctx context.Context) (map[string]entities.TeamMemberIdentity, error) {
	return nil, nil
}

func (r *listOnlyRepo) CommitBatch(ctx context.Context, writes []entities.TeamMemberWrite) error {
	return nil
}

func (r *listOnlyRepo) FindByID(ctx context.Context, id string) (*entities.TeamMember, error) {
	return nil, apperrors.ErrNotFound
}

func (r *listOnlyRepo) List(ctx context.Context, filter dto.TeamMemberExportFilter) ([]entities.TeamMember, error) {
	r.filter = filter
	return r.members, nil
}

func sampleMembers() []entities.TeamMember {
	return []entities.TeamMember{
		{
			ID: "u1", Name: "Анна", Email: "anna@example.com",
			Role: entities.DefaultRole, Status: entities.DefaultStatus,
			Department: entities.DepartmentUnassigned, Joined: "2024-01-01",
			Image: null.StringFrom("https://cdn.example.com/a.png"),
			Stats: entities.NeutralStats(), RoleRank: null.IntFrom(2),
		},
		{
			ID: "u2", Name: "Борис", Email: "boris@example.com",
			Role: entities.DefaultRole, Status: entities.DefaultStatus,
			Department: entities.DepartmentUnassigned, Joined: "2024-02-01",
			Stats: entities.NeutralStats(), HasLogin: true,
		},
	}
}

func TestReportService_WriteTeamMembersXLSX(t *testing.T) {
	repo := &listOnlyRepo{members: sampleMembers()}
	svc := NewReportService(repo, sftpclient.Config{}, zap.NewNop())

	var buf bytes.Buffer
	filter := dto.TeamMemberExportFilter{Department: entities.DepartmentUnassigned}
	require.NoError(t, svc.WriteTeamMembersXLSX(context.Background(), filter, &buf))
	assert.Equal(t, filter, repo.filter)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(teamMemberSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []string{"u1", "Анна", "anna@example.com"}, rows[1][:3])
	assert.Equal(t, "https://cdn.example.com/a.png", rows[1][7])
	assert.Equal(t, "50", rows[1][8])
	assert.Equal(t, "Да", rows[2][16])
}

func TestReportService_UploadTeamMembers(t *testing.T) {
	repo := &listOnlyRepo{members: sampleMembers()}
	svc := NewReportService(repo, sftpclient.Config{Host: "sftp.example.com", User: "u", Pass: "p"}, zap.NewNop()).(*reportService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC) }

	var gotName string
	var gotSize int
	svc.upload = func(ctx context.Context, cfg sftpclient.Config, src io.Reader, remoteFileName string) error {
		gotName = remoteFileName
		b, err := io.ReadAll(src)
		gotSize = len(b)
		return err
	}

	name, err := svc.UploadTeamMembers(context.Background(), dto.TeamMemberExportFilter{})
	require.NoError(t, err)
	assert.Equal(t, "team_members_20260301_060000.xlsx", name)
	assert.Equal(t, name, gotName)
	assert.Greater(t, gotSize, 0)
}
