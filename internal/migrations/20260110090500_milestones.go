package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20260110090500",
		up:      mig_20260110090500_milestones_up,
		down:    mig_20260110090500_milestones_down,
	})
}

func mig_20260110090500_milestones_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS milestones (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
            name VARCHAR(255) NOT NULL,
            description TEXT,
            status VARCHAR(20) NOT NULL DEFAULT 'planning',
            start_date DATE,
            due_date DATE,
            completed_at TIMESTAMP WITH TIME ZONE,
            sort_order INTEGER NOT NULL DEFAULT 0,
            progress NUMERIC(5,2) NOT NULL DEFAULT 0,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_milestones_project_id ON milestones(project_id, sort_order);
    `)
	if err != nil {
		return err
	}

	return nil
}

func mig_20260110090500_milestones_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS milestones;`)
	return err
}
