package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20260110090300",
		up:      mig_20260110090300_projects_up,
		down:    mig_20260110090300_projects_down,
	})
}

func mig_20260110090300_projects_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS projects (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
            owner_id UUID NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            name VARCHAR(255) NOT NULL,
            code VARCHAR(32) NOT NULL,
            description TEXT,
            color VARCHAR(7) NOT NULL DEFAULT '#3b82f6',
            status VARCHAR(20) NOT NULL DEFAULT 'planning',
            priority VARCHAR(20) NOT NULL DEFAULT 'medium',
            start_date DATE,
            end_date DATE,
            deadline DATE,
            budget NUMERIC(12,2),
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            UNIQUE(organization_id, code)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_projects_organization_id ON projects(organization_id);
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(organization_id, status);
    `)
	if err != nil {
		return err
	}

	return nil
}

func mig_20260110090300_projects_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS projects;`)
	return err
}
