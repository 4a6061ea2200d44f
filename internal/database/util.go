package database

import (
	"context"
	"fmt"
)

const dropAllTablesSQL = `
DO $$
	DECLARE
		r RECORD;
	BEGIN
		FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
			EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
		END LOOP;
	END $$;
`

// DropAllTables drops every table in the public schema. Irreversible.
func (d *DBinstanceStruct) DropAllTables(ctx context.Context) error {
	if err := d.WithContext(ctx).Exec(dropAllTablesSQL).Error; err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	d.logger.Warn("all tables in the public schema were dropped")
	return nil
}
