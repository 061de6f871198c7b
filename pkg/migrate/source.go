package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
)

// migrationFile matches 001_create_table.up.sql and 001_create_table.down.sql.
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSSource reads migrations from a directory of an fs.FS, typically an
// embed.FS compiled into the binary.
type FSSource struct {
	fsys fs.FS
	dir  string
}

// NewFSSource returns a Source reading dir within fsys.
func NewFSSource(fsys fs.FS, dir string) *FSSource {
	return &FSSource{fsys: fsys, dir: dir}
}

// Migrations pairs the up and down files of every version.
func (s *FSSource) Migrations() ([]Migration, error) {
	byVersion := map[int]*Migration{}

	err := fs.WalkDir(s.fsys, s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		match := migrationFile.FindStringSubmatch(d.Name())
		if match == nil {
			return nil
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return fmt.Errorf("invalid version number in file %s: %w", d.Name(), err)
		}
		content, err := fs.ReadFile(s.fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version, Name: strings.ReplaceAll(match[2], "_", " ")}
			byVersion[version] = mig
		}
		if match[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", s.dir, err)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		out = append(out, *mig)
	}
	return out, nil
}
