package main

import (
	"flag"

	"hashfund/pkg/config"
)

// Applies the SQL migrations on top of the AutoMigrate schema. Run with
// -down to roll back the most recent one.
func main() {
	down := flag.Bool("down", false, "roll back the last migration")
	flag.Parse()

	config.InitDB()

	if *down {
		config.RollbackMigration()
		return
	}
	config.ExecuteMigrations()
}
