package database

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduled-backup/internal/backup"
)

func TestScheduleRepository_Due(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	last := now.Add(-24 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "is_enabled", "backup_scope", "backup_module", "frequency", "time_of_day",
		"created_by", "last_run_at", "next_run_at",
	}).
		AddRow("s-1", true, "module", "deals", "daily", "09:00:00", "user-1", last, now).
		AddRow("s-2", true, nil, nil, "weekly", "02:30:00", nil, nil, now)

	mock.ExpectQuery("SELECT (.+) FROM backup_schedules WHERE is_enabled = TRUE AND next_run_at <= \\?").
		WithArgs(now).
		WillReturnRows(rows)

	schedules, err := NewScheduleRepository(db, nil).Due(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	assert.Equal(t, backup.Schedule{
		ID: "s-1", Enabled: true, Scope: backup.ScopeModule, Module: "deals",
		Frequency: backup.FrequencyDaily, TimeOfDay: "09:00:00", Owner: "user-1",
		LastRunAt: &last, NextRunAt: &now,
	}, schedules[0])

	assert.Equal(t, backup.ScopeFull, schedules[1].Scope, "missing scope defaults to full")
	assert.Empty(t, schedules[1].Module)
	assert.Empty(t, schedules[1].Owner)
	assert.Nil(t, schedules[1].LastRunAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_DueError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM backup_schedules").WillReturnError(errors.New("connection reset"))

	_, err = NewScheduleRepository(db, nil).Due(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestScheduleRepository_Advance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE backup_schedules SET last_run_at = \\?, next_run_at = \\? WHERE id = \\?").
		WithArgs(last, next, "s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewScheduleRepository(db, nil).Advance(context.Background(), "s-1", last, next))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// jsonArg matches a JSON-encoded manifest argument
type jsonArg map[string]int

func (j jsonArg) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	var got map[string]int
	if err := json.Unmarshal(b, &got); err != nil {
		return false
	}
	if len(got) != len(j) {
		return false
	}
	for k, n := range j {
		if got[k] != n {
			return false
		}
	}
	return true
}

func TestLedgerRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	module := "deals"
	rec := &backup.Record{
		FileName: "scheduled-deals-x.json", FilePath: "u/scheduled-deals-x.json",
		BackupType: backup.BackupTypeScheduled, Module: &module, Status: backup.StatusCompleted,
		Owner: "u", SizeBytes: 2048, TablesCount: 2, RecordsCount: 7,
		Manifest: map[string]int{"deals": 5, "leads": 2},
	}

	mock.ExpectExec("INSERT INTO backups").
		WithArgs(sqlmock.AnyArg(), rec.FileName, rec.FilePath, "scheduled", "deals", "completed", "u",
			int64(2048), 2, 7, jsonArg{"deals": 5, "leads": 2}).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewLedgerRepository(db, nil)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, fixed, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_InsertNullModule(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO backups").
		WithArgs(sqlmock.AnyArg(), "f", "p", "scheduled", nil, "failed", "00000000-0000-0000-0000-000000000000",
			int64(0), 0, 0, sqlmock.AnyArg()).
		WillReturnError(errors.New("duplicate entry"))

	err = NewLedgerRepository(db, nil).Insert(context.Background(), &backup.Record{
		FileName: "f", FilePath: "p", BackupType: backup.BackupTypeScheduled,
		Status: backup.StatusFailed, Owner: "00000000-0000-0000-0000-000000000000",
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_ListCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	mock.ExpectQuery("SELECT id, file_name, file_path, created_at FROM backups WHERE status = \\? ORDER BY created_at ASC").
		WithArgs("completed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_name", "file_path", "created_at"}).
			AddRow("b-1", "a.json", "u/a.json", t1).
			AddRow("b-2", "b.json", "u/b.json", t2))

	records, err := NewLedgerRepository(db, nil).ListCompleted(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b-1", records[0].ID)
	assert.Equal(t, "u/b.json", records[1].FilePath)
	assert.Equal(t, backup.StatusCompleted, records[1].Status)
	assert.Equal(t, t2, records[1].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM backups WHERE id = \\?").WithArgs("b-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM backups WHERE id = \\?").WithArgs("b-2").WillReturnError(errors.New("lock wait timeout"))

	repo := NewLedgerRepository(db, nil)
	assert.NoError(t, repo.Delete(context.Background(), "b-1"))
	assert.Error(t, repo.Delete(context.Background(), "b-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableReader_ReadPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := mock.NewRowsWithColumnDefinition(
		mock.NewColumn("id").OfType("BIGINT", int64(0)),
		mock.NewColumn("name").OfType("VARCHAR", ""),
		mock.NewColumn("settings").OfType("JSON", []byte{}),
		mock.NewColumn("deleted_at").OfType("DATETIME", time.Time{}),
	).
		AddRow(int64(1), []byte("Acme"), []byte(`{"theme":"dark"}`), nil).
		AddRow(int64(2), []byte("Globex"), nil, nil)

	mock.ExpectQuery("SELECT \\* FROM `contacts` LIMIT \\? OFFSET \\?").
		WithArgs(1000, 2000).
		WillReturnRows(rows)

	page, err := NewTableReader(db).ReadPage(context.Background(), "contacts", 2000, 1000)
	require.NoError(t, err)
	require.Len(t, page, 2)

	name, _ := page[0].Get("name")
	assert.Equal(t, "Acme", name)
	settings, _ := page[0].Get("settings")
	assert.Equal(t, json.RawMessage(`{"theme":"dark"}`), settings)

	b, err := json.Marshal(page[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2,"name":"Globex","settings":null,"deleted_at":null}`, string(b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableReader_ReadPageKeepsBinaryValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	raw := []byte{0xff, 0xfe, 0x00, 0x81}
	rows := mock.NewRowsWithColumnDefinition(
		mock.NewColumn("uuid").OfType("BINARY", []byte{}),
		mock.NewColumn("avatar").OfType("BLOB", []byte{}),
		mock.NewColumn("label").OfType("VARCHAR", ""),
		mock.NewColumn("legacy").OfType("VARCHAR", ""),
	).AddRow(raw, []byte("GIF89a"), []byte("plain"), []byte{0xff, 0xfe, 0x00})

	mock.ExpectQuery("SELECT \\* FROM `attachments`").WillReturnRows(rows)

	page, err := NewTableReader(db).ReadPage(context.Background(), "attachments", 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)

	b, err := json.Marshal(page[0])
	require.NoError(t, err)

	var decoded struct {
		UUID   []byte `json:"uuid"`
		Avatar []byte `json:"avatar"`
		Label  string `json:"label"`
		Legacy []byte `json:"legacy"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, raw, decoded.UUID)
	assert.Equal(t, []byte("GIF89a"), decoded.Avatar)
	assert.Equal(t, "plain", decoded.Label)
	assert.Equal(t, []byte{0xff, 0xfe, 0x00}, decoded.Legacy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableReader_RejectsBadIdentifiers(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"", "users; DROP TABLE backups", "a`b", "schema.table"} {
		_, err := NewTableReader(db).ReadPage(context.Background(), table, 0, 10)
		assert.Error(t, err, table)
	}
}

func TestTableReader_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT \\* FROM `ghost`").WillReturnError(errors.New("Error 1146: Table 'crm.ghost' doesn't exist"))

	_, err = NewTableReader(db).ReadPage(context.Background(), "ghost", 0, 10)
	assert.Error(t, err)
}
