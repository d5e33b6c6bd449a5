package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

type DBSuite struct {
	suite.Suite
	db *sql.DB
}

func (s *DBSuite) SetupTest() {
	path := filepath.Join(s.T().TempDir(), "nested", "transcripts.db")
	db, err := ConnectToDB(path, zerolog.Nop())
	s.Require().NoError(err)
	s.Require().FileExists(path)
	s.db = db
}

func (s *DBSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *DBSuite) TestMigrateCreatesTables() {
	ctx := context.Background()
	version, err := Migrate(ctx, s.db, zerolog.Nop())
	s.Require().NoError(err)
	s.Equal(int64(1), version)

	var name string
	err = s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'transcript_entries'`).Scan(&name)
	s.Require().NoError(err)
	s.Equal("transcript_entries", name)
}

func (s *DBSuite) TestMigrateIsIdempotent() {
	ctx := context.Background()
	_, err := Migrate(ctx, s.db, zerolog.Nop())
	s.Require().NoError(err)

	version, err := Migrate(ctx, s.db, zerolog.Nop())
	s.Require().NoError(err)
	s.Equal(int64(1), version)
}

func (s *DBSuite) TestRollback() {
	ctx := context.Background()
	_, err := Migrate(ctx, s.db, zerolog.Nop())
	s.Require().NoError(err)

	version, err := Rollback(ctx, s.db)
	s.Require().NoError(err)
	s.Equal(int64(0), version)

	status, err := Status(ctx, s.db)
	s.Require().NoError(err)
	s.Equal(int64(0), status)
}

func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBSuite))
}
