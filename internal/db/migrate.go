/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/lineup/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema using GORM auto-migrate, then installs the
// backend-specific guards.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if err := applyPostgresSessionOverlapGuard(database); err != nil {
		return err
	}
	return nil
}

// applyPostgresSessionOverlapGuard rejects overlapping sessions on the same
// track at the database level. Touching sessions are allowed.
func applyPostgresSessionOverlapGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
CREATE OR REPLACE FUNCTION prevent_track_session_overlap()
RETURNS trigger
LANGUAGE plpgsql
AS $$
BEGIN
  IF NEW.ends_at <= NEW.starts_at THEN
    RAISE EXCEPTION 'session end must be after start'
      USING ERRCODE = '23514';
  END IF;

  IF EXISTS (
    SELECT 1
    FROM sessions s
    WHERE s.track_id = NEW.track_id
      AND s.id <> NEW.id
      AND tstzrange(s.starts_at, s.ends_at, '[)') && tstzrange(NEW.starts_at, NEW.ends_at, '[)')
  ) THEN
    RAISE EXCEPTION 'overlapping sessions are not allowed on track %', NEW.track_id
      USING ERRCODE = '23514';
  END IF;

  RETURN NEW;
END;
$$;

DROP TRIGGER IF EXISTS trg_prevent_track_session_overlap ON sessions;

CREATE CONSTRAINT TRIGGER trg_prevent_track_session_overlap
AFTER INSERT OR UPDATE OF track_id, starts_at, ends_at
ON sessions
DEFERRABLE INITIALLY DEFERRED
FOR EACH ROW
EXECUTE FUNCTION prevent_track_session_overlap();
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres session overlap guard: %w", err)
	}
	return nil
}
