package migrations

import (
	"context"
	"sort"
)

const (
	CampaignsTable            = "campaigns"
	CampaignsMigrationVersion = "20250617092028"
)

type TableCheck struct {
	Table             string
	Version           string
	TableExists       bool
	MigrationRecorded bool
	// History holds the versions found in the tracking table, newest first.
	History []string
}

// Healthy is true when the table exists; a missing history row alone only
// means the table was created out of band.
func (c TableCheck) Healthy() bool { return c.TableExists }

func (c TableCheck) Recommendations() []string {
	if c.Healthy() {
		return nil
	}
	return []string{
		"Run: migrate run",
		"Check the database logs for errors",
		"Verify migration file format is correct",
	}
}

// CheckTable probes table and looks for the migration version in the
// tracking history.
func CheckTable(ctx context.Context, store Store, table, version string) (TableCheck, error) {
	check := TableCheck{Table: table, Version: version}
	exists, err := store.TableExists(ctx, table)
	if err != nil {
		return check, err
	}
	check.TableExists = exists

	hasHistory, err := store.TableExists(ctx, TrackingTable)
	if err != nil {
		return check, err
	}
	if !hasHistory {
		return check, nil
	}
	rows, err := store.Applied(ctx)
	if err != nil {
		return check, err
	}
	for _, row := range rows {
		v := versionOf(row.Filename)
		check.History = append(check.History, v)
		if v == version {
			check.MigrationRecorded = true
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(check.History)))
	return check, nil
}
