package main

import (
	"os"
	"strconv"

	"github.com/md-rashed-zaman/slotkeeper/libs/config"
	"github.com/md-rashed-zaman/slotkeeper/libs/db"
	"github.com/md-rashed-zaman/slotkeeper/libs/runtime"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/migrations"
)

// booking-migrate applies the embedded schema. "booking-migrate force <version>" clears a
// dirty state left by a failed run.
func main() {
	logger := runtime.NewLogger("booking-migrate", config.String("LOG_LEVEL", "info"))
	if err := config.LoadDotEnv(); err != nil {
		logger.Error("load env", "err", err)
		os.Exit(1)
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	force := -1
	if len(os.Args) >= 3 && os.Args[1] == "force" {
		force, err = strconv.Atoi(os.Args[2])
		if err != nil || force < 0 {
			logger.Error("invalid version", "value", os.Args[2])
			os.Exit(2)
		}
	}

	version, err := db.Migrate(databaseURL, migrations.FS, force)
	if err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}
	if force >= 0 {
		logger.Info("forced schema version", "version", version)
		return
	}
	logger.Info("migrations complete", "version", version)
}
