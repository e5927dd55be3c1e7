package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Migration filenames follow golang-migrate's numbered convention:
// 001_name.up.sql / 001_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// migrationFile is one parsed migration filename.
type migrationFile struct {
	Sequence  int
	Name      string
	Direction string
}

// listMigrationFiles returns the sorted .sql files in dir that match the
// naming convention. Non-conforming .sql files are reported as errors rather
// than silently skipped, so a typo'd filename cannot quietly drop a migration.
func listMigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		if !migrationFilenameRegex.MatchString(entry.Name()) {
			return nil, fmt.Errorf(
				"invalid migration filename: %s (expected 001_name.up.sql or 001_name.down.sql)", entry.Name())
		}

		files = append(files, entry.Name())
	}

	sort.Strings(files)

	return files, nil
}

// validateMigrationDir checks that dir holds a usable migration set: at
// least one file, every up paired with a down, and sequence numbers starting
// at 001 with no gaps. Run before handing the directory to golang-migrate,
// which reports these mistakes much less legibly at apply time.
func validateMigrationDir(dir string) error {
	files, err := listMigrationFiles(dir)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no migration files found in directory: %s", dir)
	}

	pairs := make(map[string]map[string]bool)
	sequences := make(map[int]bool)

	for _, file := range files {
		m, err := parseMigrationFilename(file)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("%03d_%s", m.Sequence, m.Name)
		if pairs[key] == nil {
			pairs[key] = make(map[string]bool)
		}

		pairs[key][m.Direction] = true
		sequences[m.Sequence] = true
	}

	for key, directions := range pairs {
		if !directions["up"] {
			return fmt.Errorf("orphaned down migration: missing up migration for %s", key)
		}

		if !directions["down"] {
			return fmt.Errorf("orphaned up migration: missing down migration for %s", key)
		}
	}

	ordered := make([]int, 0, len(sequences))
	for seq := range sequences {
		ordered = append(ordered, seq)
	}

	sort.Ints(ordered)

	if ordered[0] != 1 {
		return fmt.Errorf("migration sequence should start with 001, but found %03d", ordered[0])
	}

	for i := 1; i < len(ordered); i++ {
		if ordered[i] != ordered[i-1]+1 {
			return fmt.Errorf("gap in migration sequence: expected %03d, found %03d", ordered[i-1]+1, ordered[i])
		}
	}

	return nil
}

func parseMigrationFilename(filename string) (migrationFile, error) {
	matches := migrationFilenameRegex.FindStringSubmatch(filename)
	if len(matches) != 4 {
		return migrationFile{}, fmt.Errorf(
			"invalid migration filename format: %s (expected: 001_name.up.sql or 001_name.down.sql)", filename)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return migrationFile{}, fmt.Errorf("invalid sequence number in filename %s: %w", filename, err)
	}

	return migrationFile{Sequence: sequence, Name: matches[2], Direction: matches[3]}, nil
}
