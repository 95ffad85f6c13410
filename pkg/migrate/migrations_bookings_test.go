package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calebreyes/driveshare-backend/pkg/migrate"
)

func TestBookingsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_bookings.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no bookings migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS bookings",
		"CONSTRAINT ux_bookings_session UNIQUE (session_id)",
		"CHECK (authorized_charge_cents >= 100)",
		"CHECK (end_date > start_date)",
		"ix_bookings_vehicle_dates",
		"DROP TABLE IF EXISTS bookings",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
