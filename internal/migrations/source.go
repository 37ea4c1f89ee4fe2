// Package migrations applies and inspects the SQL migration files that ship
// with the service. Files carry optional "-- UP MIGRATION" and
// "-- DOWN MIGRATION" sections; progress is tracked in the _migrations table.
package migrations

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

const (
	upMarker   = "-- UP MIGRATION"
	downMarker = "-- DOWN MIGRATION"
)

var (
	upMarkerPattern   = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(upMarker))
	downMarkerPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(downMarker))
	upHeaderLine      = regexp.MustCompile(`(?i)-- UP MIGRATION[^\n]*\n`)
	upHintLine        = regexp.MustCompile(`(?i)-- Write your up migration SQL here:[^\n]*\n`)
	downHeaderLine    = regexp.MustCompile(`(?i)-- DOWN MIGRATION[^\n]*\n?`)
	downHintLine      = regexp.MustCompile(`(?i)-- Write your down migration SQL here:[^\n]*\n?`)
)

type Migration struct {
	Filename string
	Content  string
	Checksum string
	HasUp    bool
	HasDown  bool
}

// Version is the leading timestamp of the filename, e.g. "20250617092028".
func (m Migration) Version() string {
	return versionOf(m.Filename)
}

func (m Migration) Up() string   { return ExtractUp(m.Content) }
func (m Migration) Down() string { return ExtractDown(m.Content) }

// Load reads every *.sql file at the root of fsys, sorted by filename.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, NewMigration(name, string(raw)))
	}
	return out, nil
}

func LoadDir(dir string) ([]Migration, error) {
	return Load(os.DirFS(dir))
}

func NewMigration(filename, content string) Migration {
	return Migration{
		Filename: filename,
		Content:  content,
		Checksum: Checksum(content),
		HasUp:    upMarkerPattern.MatchString(content),
		HasDown:  downMarkerPattern.MatchString(content),
	}
}

// Checksum is the hex sha256 of the whole file, sections included.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ExtractUp returns the SQL between the UP marker and the DOWN marker (or end
// of file). A file without an UP marker is treated as UP SQL in full, minus
// any DOWN section.
func ExtractUp(content string) string {
	loc := upMarkerPattern.FindStringIndex(content)
	if loc == nil {
		if down := downMarkerPattern.FindStringIndex(content); down != nil {
			return strings.TrimSpace(content[:down[0]])
		}
		return strings.TrimSpace(content)
	}
	section := content[loc[0]:]
	if down := downMarkerPattern.FindStringIndex(section); down != nil {
		section = section[:down[0]]
	}
	section = replaceFirst(upHeaderLine, section)
	section = replaceFirst(upHintLine, section)
	return strings.TrimSpace(section)
}

// ExtractDown returns the SQL after the DOWN marker, or "" when the file has
// no DOWN section.
func ExtractDown(content string) string {
	loc := downMarkerPattern.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	section := content[loc[0]:]
	section = replaceFirst(downHeaderLine, section)
	section = replaceFirst(downHintLine, section)
	return strings.TrimSpace(section)
}

func replaceFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

func versionOf(filename string) string {
	base := strings.TrimSuffix(filename, path.Ext(filename))
	if i := strings.IndexByte(base, '_'); i > 0 {
		return base[:i]
	}
	return base
}
