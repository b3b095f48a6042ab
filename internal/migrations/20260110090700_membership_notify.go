package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20260110090700",
		up:      mig_20260110090700_membership_notify_up,
		down:    mig_20260110090700_membership_notify_down,
	})
}

// Broadcasts organization membership changes on the `membership_changes`
// channel so API nodes can drop cached role resolutions.
func mig_20260110090700_membership_notify_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE OR REPLACE FUNCTION notify_membership_change() RETURNS trigger AS $$
        DECLARE
            rec RECORD;
        BEGIN
            IF (TG_OP = 'DELETE') THEN
                rec := OLD;
            ELSE
                rec := NEW;
            END IF;

            PERFORM pg_notify(
                'membership_changes',
                rec.organization_id || ':' || rec.user_id || ':' || TG_OP
            );

            RETURN rec;
        END;
        $$ LANGUAGE plpgsql;
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TRIGGER organization_members_notify
        AFTER INSERT OR UPDATE OR DELETE ON organization_members
        FOR EACH ROW EXECUTE FUNCTION notify_membership_change();
    `)
	if err != nil {
		return err
	}

	return nil
}

func mig_20260110090700_membership_notify_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TRIGGER IF EXISTS organization_members_notify ON organization_members;`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DROP FUNCTION IF EXISTS notify_membership_change();`)
	return err
}
