package consts

import (
	"os"
	"time"
)

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// ConfigFile is the name of the project configuration file
	ConfigFile = "strata.yaml"

	// ConfigEnvVar names the environment variable that overrides the config file path
	ConfigEnvVar = "STRATA_CONFIG"

	// ScriptSuffix is the file extension of migration scripts
	ScriptSuffix = ".sql"

	// DefaultDialect is the database dialect used when none is configured
	DefaultDialect = "sqlite"

	// DefaultLocation is the directory scanned for migration scripts
	DefaultLocation = "db/migrations"

	// DefaultHistoryTable is the name of the ledger table
	DefaultHistoryTable = "strata_history"

	// DefaultLockTable is the name of the advisory lock table
	DefaultLockTable = "strata_lock"

	// DefaultLockTimeout bounds how long a run waits for the advisory lock
	DefaultLockTimeout = 30 * time.Second

	// DefaultLockPollInterval is the delay between lock acquisition attempts
	DefaultLockPollInterval = 250 * time.Millisecond

	// DefaultLockStaleAfter is the age after which an abandoned lock row is removed
	DefaultLockStaleAfter = 15 * time.Minute

	// DefaultMissingSeverity is the severity applied to applied scripts that
	// are no longer present locally
	DefaultMissingSeverity = "warn"
)
