package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhwedel/firma/internal/storage"
)

var techniker = MustSeedSet(ReferenceRow{ID: 5, Code: "tkk", Name: "Techniker"})

func newMockEngine(t *testing.T, seeds SeedSet) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e, err := NewEngine(storage.Wrap(db, storage.MySQL{}, "firma"), DefaultPlan(), WithSeeds(seeds))
	require.NoError(t, err)
	return e, mock
}

func countRows(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func expectTable(mock sqlmock.Sqlmock, table string, exists bool) {
	n := int64(0)
	if exists {
		n = 1
	}
	mock.ExpectQuery("FROM information_schema.tables").WithArgs("firma", table).WillReturnRows(countRows(n))
}

func expectColumn(mock sqlmock.Sqlmock, column string, exists bool) {
	n := int64(0)
	if exists {
		n = 1
	}
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("firma", "personal", column).WillReturnRows(countRows(n))
}

func expectConstraint(mock sqlmock.Sqlmock, exists bool) {
	n := int64(0)
	if exists {
		n = 1
	}
	mock.ExpectQuery("FROM information_schema.table_constraints").WithArgs("firma", "personal", "fk_kk").WillReturnRows(countRows(n))
}

func expectNoStaleTables(mock sqlmock.Sqlmock) {
	expectTable(mock, "personal_alt", false)
	expectTable(mock, "personal_neu", false)
}

// expectSeed expects a seeding pass over an existing reference table holding existing.
func expectSeed(mock sqlmock.Sqlmock, existing map[int64]string, seeds SeedSet) {
	expectTable(mock, "krankenversicherung", true)
	rows := sqlmock.NewRows([]string{"kkid", "kuerzel"})
	for id, code := range existing {
		rows.AddRow(id, code)
	}
	mock.ExpectQuery("SELECT `kkid`, `kuerzel` FROM `firma`.`krankenversicherung`").WillReturnRows(rows)
	for _, r := range seeds.Rows() {
		mock.ExpectExec("INSERT INTO `firma`.`krankenversicherung` .+ ON DUPLICATE KEY UPDATE `name` = VALUES\\(`name`\\)").
			WithArgs(r.ID, r.Code, r.Name).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
}

// expectNoOrphans expects the pre-DDL orphan check over an existing kkid
// column and reference table, finding nothing.
func expectNoOrphans(mock sqlmock.Sqlmock) {
	expectColumn(mock, "kkid", true)
	expectTable(mock, "krankenversicherung", true)
	mock.ExpectQuery("SELECT DISTINCT e.`kkid` FROM `firma`.`personal` e LEFT JOIN `firma`.`krankenversicherung` ref").
		WillReturnRows(sqlmock.NewRows([]string{"kkid"}))
}

func TestRunFreshSchema(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectNoStaleTables(mock)

	expectColumn(mock, "kkid", false)
	expectTable(mock, "krankenversicherung", false)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `firma`.`krankenversicherung`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT `kkid`, `kuerzel` FROM").WillReturnRows(sqlmock.NewRows([]string{"kkid", "kuerzel"}))
	mock.ExpectExec("INSERT INTO `firma`.`krankenversicherung`").WithArgs(int64(5), "tkk", "Techniker").WillReturnResult(sqlmock.NewResult(5, 1))

	expectColumn(mock, "kkid", false)
	mock.ExpectExec("ALTER TABLE `firma`.`personal` ADD COLUMN `kkid` INT NULL").WillReturnResult(sqlmock.NewResult(0, 0))

	expectColumn(mock, "krankenkasse", true)
	mock.ExpectExec("UPDATE `firma`.`personal` AS e SET `kkid` = .+ WHERE e.`kkid` IS NULL AND EXISTS").WillReturnResult(sqlmock.NewResult(0, 1))

	expectColumn(mock, "krankenkasse", true)
	mock.ExpectExec("ALTER TABLE `firma`.`personal` DROP COLUMN `krankenkasse`").WillReturnResult(sqlmock.NewResult(0, 0))

	expectConstraint(mock, false)
	mock.ExpectExec("ALTER TABLE `firma`.`personal` ADD CONSTRAINT `fk_kk` FOREIGN KEY \\(`kkid`\\) REFERENCES `firma`.`krankenversicherung` \\(`kkid`\\)").
		WillReturnResult(sqlmock.NewResult(0, 0))

	expectColumn(mock, "kkid", true)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `firma`.`personal` WHERE `kkid` IS NULL").WillReturnRows(countRows(1))
	mock.ExpectCommit()

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, StateCommitted, result.State)
	assert.Equal(t, int64(1), result.Resolved)
	assert.Equal(t, int64(1), result.Unresolved)
	assert.False(t, result.NotNull)
	assert.False(t, result.Complete())
	assert.True(t, result.Seed.CreatedTable)
	assert.Equal(t, 1, result.Seed.Inserted)

	var applied []State
	for _, s := range result.Steps {
		if s.Applied {
			applied = append(applied, s.Step)
		}
	}
	assert.Equal(t, []State{
		StateSeedReference,
		StateEnsureColumn,
		StateRemap,
		StateDropLegacyColumn,
		StateAddForeignKey,
	}, applied)
}

func TestRunAlreadyMigratedIsNoOp(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	expectNoOrphans(mock)
	expectSeed(mock, map[int64]string{5: "tkk"}, techniker)
	expectColumn(mock, "kkid", true)
	expectColumn(mock, "krankenkasse", false)
	expectColumn(mock, "krankenkasse", false)
	expectConstraint(mock, true)
	expectColumn(mock, "kkid", true)
	mock.ExpectQuery("WHERE `kkid` IS NULL").WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT is_nullable").WithArgs("firma", "personal", "kkid").
		WillReturnRows(sqlmock.NewRows([]string{"is_nullable"}).AddRow("NO"))
	mock.ExpectCommit()

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, StateCommitted, result.State)
	assert.True(t, result.Complete())
	assert.True(t, result.NotNull)
	assert.Equal(t, 1, result.Seed.Updated)
	for _, s := range result.Steps {
		if s.Step != StateSeedReference {
			assert.False(t, s.Applied, "step %s should be a no-op", s.Step)
		}
	}
}

func TestRunTightensWhenEveryRowResolved(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	expectNoOrphans(mock)
	expectSeed(mock, map[int64]string{5: "tkk"}, techniker)
	expectColumn(mock, "kkid", true)
	expectColumn(mock, "krankenkasse", true)
	mock.ExpectExec("UPDATE `firma`.`personal`").WillReturnResult(sqlmock.NewResult(0, 3))
	expectColumn(mock, "krankenkasse", true)
	mock.ExpectExec("DROP COLUMN `krankenkasse`").WillReturnResult(sqlmock.NewResult(0, 0))
	expectConstraint(mock, true)
	expectColumn(mock, "kkid", true)
	mock.ExpectQuery("WHERE `kkid` IS NULL").WillReturnRows(countRows(0))
	mock.ExpectQuery("SELECT is_nullable").WillReturnRows(sqlmock.NewRows([]string{"is_nullable"}).AddRow("YES"))
	mock.ExpectExec("ALTER TABLE `firma`.`personal` MODIFY COLUMN `kkid` INT NOT NULL").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.True(t, result.Complete())
	assert.True(t, result.NotNull)
	assert.Equal(t, int64(3), result.Resolved)
}

func TestRunDropsStaleSwapTables(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectTable(mock, "personal_alt", true)
	expectTable(mock, "personal_neu", false)
	mock.ExpectExec("DROP TABLE IF EXISTS `firma`.`personal_alt`").WillReturnResult(sqlmock.NewResult(0, 0))
	expectNoOrphans(mock)
	expectSeed(mock, map[int64]string{5: "tkk"}, techniker)
	expectColumn(mock, "kkid", true)
	expectColumn(mock, "krankenkasse", false)
	expectColumn(mock, "krankenkasse", false)
	expectConstraint(mock, true)
	expectColumn(mock, "kkid", true)
	mock.ExpectQuery("WHERE `kkid` IS NULL").WillReturnRows(countRows(2))
	mock.ExpectCommit()

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.NotEmpty(t, result.Steps)
	assert.Equal(t, StateCleanupStaleArtifacts, result.Steps[0].Step)
	assert.True(t, result.Steps[0].Applied)
	assert.Equal(t, int64(2), result.Unresolved)
}

func TestRunRollsBackWhenForeignKeyRejected(t *testing.T) {
	e, mock := newMockEngine(t, techniker)
	violation := errors.New("Error 1452: Cannot add or update a child row: a foreign key constraint fails")

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	expectNoOrphans(mock)
	expectSeed(mock, map[int64]string{5: "tkk"}, techniker)
	expectColumn(mock, "kkid", true)
	expectColumn(mock, "krankenkasse", true)
	mock.ExpectExec("UPDATE `firma`.`personal`").WillReturnResult(sqlmock.NewResult(0, 0))
	expectColumn(mock, "krankenkasse", true)
	mock.ExpectExec("DROP COLUMN `krankenkasse`").WillReturnResult(sqlmock.NewResult(0, 0))
	expectConstraint(mock, false)
	mock.ExpectExec("ADD CONSTRAINT `fk_kk`").WillReturnError(violation)
	mock.ExpectRollback()

	result, err := e.Run(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, StateRolledBack, result.State)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.ErrorIs(t, err, violation)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StateAddForeignKey, stepErr.Step)
}

func TestRunRejectsOrphanedKeysBeforeAnyDDL(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	expectColumn(mock, "kkid", true)
	expectTable(mock, "krankenversicherung", true)
	mock.ExpectQuery("SELECT DISTINCT e.`kkid` FROM `firma`.`personal` e LEFT JOIN").
		WillReturnRows(sqlmock.NewRows([]string{"kkid"}).AddRow(int64(99)))
	mock.ExpectRollback()

	// No CREATE, INSERT, ALTER or DROP is expected: sqlmock fails any of them.
	result, err := e.Run(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, StateRolledBack, result.State)
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Contains(t, err.Error(), "[99]")
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StateSeedReference, stepErr.Step)
	for _, s := range result.Steps {
		assert.False(t, s.Applied, "step %s applied before the orphan check", s.Step)
	}
}

func TestRunOrphanCheckCountsSeedIDsAsKnown(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	expectColumn(mock, "kkid", true)
	expectTable(mock, "krankenversicherung", false)
	// kkid 5 will be seeded, kkid 7 never exists.
	mock.ExpectQuery("SELECT DISTINCT `kkid` FROM `firma`.`personal` WHERE `kkid` IS NOT NULL").
		WillReturnRows(sqlmock.NewRows([]string{"kkid"}).AddRow(int64(5)).AddRow(int64(7)))
	mock.ExpectRollback()

	_, err := e.Run(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Contains(t, err.Error(), "[7]")
}

func TestRunPostgresSkipsOrphanCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	e, err := NewEngine(storage.Wrap(db, storage.Postgres{}, "firma"), DefaultPlan().WithSchema("public"), WithSeeds(techniker))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM information_schema.tables").WithArgs("public", "personal_alt").WillReturnRows(countRows(0))
	mock.ExpectQuery("FROM information_schema.tables").WithArgs("public", "personal_neu").WillReturnRows(countRows(0))
	// The seeder's own table check comes next; a failure here ends the run.
	boom := errors.New("connection reset")
	mock.ExpectQuery("FROM information_schema.tables").WithArgs("public", "krankenversicherung").WillReturnError(boom)
	mock.ExpectRollback()

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunIntrospectionFailureIsFatal(t *testing.T) {
	e, mock := newMockEngine(t, techniker)
	boom := errors.New("Error 1142: SELECT command denied")

	mock.ExpectBegin()
	mock.ExpectQuery("FROM information_schema.tables").WillReturnError(boom)
	mock.ExpectRollback()

	result, err := e.Run(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, StateRolledBack, result.State)
	assert.ErrorIs(t, err, ErrIntrospection)
	assert.ErrorIs(t, err, boom)
}

func TestRollbackFailureDoesNotMaskError(t *testing.T) {
	e, mock := newMockEngine(t, techniker)
	boom := errors.New("lost connection during query")

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	mock.ExpectQuery("FROM information_schema.columns").WillReturnError(boom)
	mock.ExpectRollback().WillReturnError(errors.New("rollback: bad connection"))

	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, err.Error(), "rollback")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRejectsReKeyedSeed(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	expectColumn(mock, "kkid", false)
	expectTable(mock, "krankenversicherung", true)
	mock.ExpectQuery("SELECT `kkid`, `kuerzel` FROM").
		WillReturnRows(sqlmock.NewRows([]string{"kkid", "kuerzel"}).AddRow(int64(5), "aok"))
	mock.ExpectRollback()

	result, err := e.Run(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, StateRolledBack, result.State)
	assert.ErrorIs(t, err, ErrSeedConflict)
}

func TestRunRejectsCaseDuplicateReferenceCodes(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	expectColumn(mock, "kkid", false)
	expectTable(mock, "krankenversicherung", true)
	mock.ExpectQuery("SELECT `kkid`, `kuerzel` FROM").
		WillReturnRows(sqlmock.NewRows([]string{"kkid", "kuerzel"}).
			AddRow(int64(5), "tkk").
			AddRow(int64(9), "TKK"))
	mock.ExpectRollback()

	_, err := e.Run(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.ErrorIs(t, err, ErrSeedConflict)
}

func TestStatusReportsPendingSteps(t *testing.T) {
	e, mock := newMockEngine(t, techniker)

	mock.ExpectBegin()
	expectNoStaleTables(mock)
	expectColumn(mock, "kkid", false)
	expectColumn(mock, "krankenkasse", true)
	expectColumn(mock, "krankenkasse", true)
	expectConstraint(mock, false)
	expectColumn(mock, "kkid", false)
	mock.ExpectRollback()

	status, err := e.Status(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, status, len(StepOrder()))
	want := map[State]bool{
		StateCleanupStaleArtifacts: false,
		StateSeedReference:         true,
		StateEnsureColumn:          true,
		StateRemap:                 true,
		StateDropLegacyColumn:      true,
		StateAddForeignKey:         true,
		StateMaybeTightenNotNull:   true,
	}
	for _, s := range status {
		assert.Equal(t, want[s.Step], s.Pending, "step %s", s.Step)
	}
}

func TestStepOrder(t *testing.T) {
	assert.Equal(t, []State{
		StateCleanupStaleArtifacts,
		StateSeedReference,
		StateEnsureColumn,
		StateRemap,
		StateDropLegacyColumn,
		StateAddForeignKey,
		StateMaybeTightenNotNull,
	}, StepOrder())
}

func TestNewEngineRejectsOversizedSeed(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	seeds := MustSeedSet(ReferenceRow{ID: 1, Code: "toolong", Name: "x"})
	_, err = NewEngine(storage.Wrap(db, storage.MySQL{}, "firma"), DefaultPlan(), WithSeeds(seeds))
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestNewEngineDefaultsSchema(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e, err := NewEngine(storage.Wrap(db, storage.Postgres{}, "firma"), DefaultPlan())
	require.NoError(t, err)
	assert.Equal(t, "public", e.Plan().Schema)

	e, err = NewEngine(storage.Wrap(db, storage.MySQL{}, "firma"), DefaultPlan())
	require.NoError(t, err)
	assert.Equal(t, "firma", e.Plan().Schema)
}
