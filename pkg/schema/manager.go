package schema

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/db"
)

// Manager drops and recreates the warehouse tables. Each statement runs on
// its own and commits immediately; the first failure aborts the operation.
type Manager struct {
	logger log.FieldLogger
	execer db.Execer
	tables []Table
}

func NewManager(logger log.FieldLogger, execer db.Execer) *Manager {
	return &Manager{
		logger: logger.WithField("component", "schema"),
		execer: execer,
		tables: Tables(),
	}
}

// DropAll drops every table that exists.
func (m *Manager) DropAll(ctx context.Context) error {
	for _, t := range m.tables {
		m.logger.Debugf("dropping table %s", t.Name)
		if _, err := m.execer.ExecContext(ctx, DropTableSQL(t.Name)); err != nil {
			return fmt.Errorf("unable to drop table %s: %w", t.Name, err)
		}
	}
	m.logger.Infof("dropped %d tables", len(m.tables))
	return nil
}

// CreateAll creates every table.
func (m *Manager) CreateAll(ctx context.Context) error {
	for _, t := range m.tables {
		m.logger.Debugf("creating table %s", t.Name)
		if _, err := m.execer.ExecContext(ctx, CreateTableSQL(t)); err != nil {
			return fmt.Errorf("unable to create table %s: %w", t.Name, err)
		}
	}
	m.logger.Infof("created %d tables", len(m.tables))
	return nil
}

// Reset drops then creates all tables.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.DropAll(ctx); err != nil {
		return err
	}
	return m.CreateAll(ctx)
}
