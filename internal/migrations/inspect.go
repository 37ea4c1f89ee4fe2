package migrations

// FileReport describes one migration file without touching a database.
type FileReport struct {
	Index    int
	Filename string
	HasUp    bool
	HasDown  bool
	Checksum string
}

// Raw reports a plain SQL file with neither section marker.
func (r FileReport) Raw() bool { return !r.HasUp && !r.HasDown }

func Inspect(migrations []Migration) []FileReport {
	out := make([]FileReport, 0, len(migrations))
	for i, m := range migrations {
		out = append(out, FileReport{
			Index:    i + 1,
			Filename: m.Filename,
			HasUp:    m.HasUp,
			HasDown:  m.HasDown,
			Checksum: m.Checksum,
		})
	}
	return out
}
