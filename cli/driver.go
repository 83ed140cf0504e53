package cli

import (
	"context"
	"fmt"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/mysql"
	"github.com/honeynil/sqlkit/drivers/postgres"
	"github.com/honeynil/sqlkit/drivers/sqlite"
)

// Driver name constants accepted by --driver / SQLKIT_DRIVER.
const (
	DriverPostgres   = "postgres"
	DriverPostgreSQL = "postgresql"
	DriverMySQL      = "mysql"
	DriverSQLite     = "sqlite"
	DriverSQLite3    = "sqlite3"
)

// openDatabase dials the configured driver and wraps it in a
// sqlkit.Database using that driver's default pool configuration.
func (app *App) openDatabase(ctx context.Context) (*sqlkit.Database, error) {
	switch app.config.Driver {
	case DriverPostgres, DriverPostgreSQL:
		return sqlkit.Open(ctx, sqlkit.DriverPostgres, postgres.Open(app.config.DSN), postgres.ClassifyFunc, sqlkit.DefaultPoolConfig())
	case DriverMySQL:
		return sqlkit.Open(ctx, sqlkit.DriverMySQL, mysql.Open(app.config.DSN), mysql.ClassifyFunc, sqlkit.DefaultPoolConfig())
	case DriverSQLite, DriverSQLite3:
		return sqlkit.Open(ctx, sqlkit.DriverSQLite, sqlite.Open(app.config.DSN), sqlite.ClassifyFunc, sqlkit.DefaultPoolConfig())
	default:
		return nil, fmt.Errorf("unsupported driver: %s (supported: postgres, mysql, sqlite)", app.config.Driver)
	}
}
