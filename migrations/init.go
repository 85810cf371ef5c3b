package migrations

import (
	"io/fs"

	enroll "github.com/goliatone/go-enroll"
)

func init() {
	coreFS, err := fs.Sub(enroll.MigrationsFS, "data/sql/migrations")
	if err != nil {
		return
	}
	Register(coreFS)
}
