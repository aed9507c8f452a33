package config

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"
)

const (
	defaultDBTimeout  = 10 * time.Second
	defaultDBFileName = "rwd.db"
)

// DBConfig holds the bolt database configuration.
type DBConfig struct {
	// DBPath is the directory path in which the database file is stored.
	DBPath string `long:"dbpath" description:"The directory path in which the database file should be stored."`
	// DBFileName is the name of the database file.
	DBFileName string `long:"dbfilename" description:"The name of the database file."`
	// NoFreelistSync, if true, prevents the database from syncing its
	// freelist to disk, improving performance at the expense of increased
	// startup time.
	NoFreelistSync bool `long:"nofreelistsync" description:"Whether the databases used within the daemon should sync their freelist to disk."`
	// AutoCompact specifies if a Bolt based database backend should be
	// automatically compacted on startup (if the minimum age of the
	// database file is reached). This will require additional disk space
	// for the compacted copy of the database but will result in an overall
	// lower database size after the compaction.
	AutoCompact bool `long:"autocompact" description:"Whether the databases used within the daemon should automatically be compacted on startup."`
	// AutoCompactMinAge specifies the minimum time that must have passed
	// since a bolt database file was last compacted for the compaction to
	// be considered again.
	AutoCompactMinAge time.Duration `long:"autocompactminage" description:"How long ago (in hours) the database file must be last compacted for the compaction to be considered again."`
	// DBTimeout specifies the timeout value to use when opening the wallet
	// database.
	DBTimeout time.Duration `long:"dbtimeout" description:"Specify the timeout value used when opening the database."`
}

func DefaultDBConfig() *DBConfig {
	return DefaultDBConfigWithHomePath(DefaultRwdDir)
}

func DefaultDBConfigWithHomePath(homePath string) *DBConfig {
	return &DBConfig{
		DBPath:            DataDir(homePath),
		DBFileName:        defaultDBFileName,
		NoFreelistSync:    true,
		AutoCompact:       false,
		AutoCompactMinAge: kvdb.DefaultBoltAutoCompactMinAge,
		DBTimeout:         defaultDBTimeout,
	}
}

// GetDBBackend opens the configured bolt database, creating the file if
// it does not exist yet.
func (db *DBConfig) GetDBBackend() (kvdb.Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("db config cannot be nil")
	}

	return kvdb.GetBoltBackend(&kvdb.BoltBackendConfig{
		DBPath:            db.DBPath,
		DBFileName:        db.DBFileName,
		NoFreelistSync:    db.NoFreelistSync,
		AutoCompact:       db.AutoCompact,
		AutoCompactMinAge: db.AutoCompactMinAge,
		DBTimeout:         db.DBTimeout,
	})
}
