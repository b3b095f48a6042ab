package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20260110090600",
		up:      mig_20260110090600_tasks_up,
		down:    mig_20260110090600_tasks_down,
	})
}

func mig_20260110090600_tasks_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS tasks (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
            milestone_id UUID REFERENCES milestones(id) ON DELETE SET NULL,
            assignee_id UUID REFERENCES users(id) ON DELETE SET NULL,
            created_by UUID NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
            parent_id UUID REFERENCES tasks(id) ON DELETE CASCADE,
            title VARCHAR(255) NOT NULL,
            description TEXT,
            status VARCHAR(20) NOT NULL DEFAULT 'todo',
            priority VARCHAR(20) NOT NULL DEFAULT 'medium',
            type VARCHAR(20) NOT NULL DEFAULT 'task',
            estimated_hours NUMERIC(6,2),
            actual_hours NUMERIC(6,2),
            time_slot TIME,
            start_date DATE,
            due_date DATE,
            completed_at TIMESTAMP WITH TIME ZONE,
            tags TEXT[] NOT NULL DEFAULT '{}',
            notes TEXT,
            sort_order INTEGER NOT NULL DEFAULT 0,
            progress NUMERIC(5,2) NOT NULL DEFAULT 0,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_milestone_id ON tasks(milestone_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(project_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(project_id, priority);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee_id ON tasks(assignee_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent_id ON tasks(parent_id);`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

func mig_20260110090600_tasks_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS tasks;`)
	return err
}
