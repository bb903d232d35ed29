// Package migrations crea el esquema de cada servicio a partir de los scripts embebidos.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/beego/beego/v2/core/logs"
)

//go:embed sql/*.sql
var scripts embed.FS

// Execer es el subconjunto de *sql.DB / *sqlx.DB necesario para aplicar scripts.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Apply ejecuta, en orden, el script de cada módulo. Los scripts son idempotentes.
func Apply(ctx context.Context, db Execer, modules ...string) error {
	for _, module := range modules {
		script, err := scripts.ReadFile("sql/" + module + ".sql")
		if err != nil {
			return fmt.Errorf("migración del módulo %s: %w", module, err)
		}
		if _, err := db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("aplicando migración %s: %w", module, err)
		}
		logs.Info("migración aplicada module=%s", module)
	}
	return nil
}
