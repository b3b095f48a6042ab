package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20260110090100",
		up:      mig_20260110090100_organizations_up,
		down:    mig_20260110090100_organizations_down,
	})
}

func mig_20260110090100_organizations_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS organizations (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name VARCHAR(255) NOT NULL,
            slug VARCHAR(255) NOT NULL,
            description TEXT,
            plan VARCHAR(20) NOT NULL DEFAULT 'free',
            max_users INTEGER NOT NULL DEFAULT 5,
            max_projects INTEGER NOT NULL DEFAULT 3,
            status VARCHAR(20) NOT NULL DEFAULT 'active',
            trial_ends_at TIMESTAMP WITH TIME ZONE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            UNIQUE(slug)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_organizations_slug ON organizations(slug);
    `)
	if err != nil {
		return err
	}

	return nil
}

func mig_20260110090100_organizations_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS organizations;`)
	return err
}
