package pgstore

import "embed"

// Migrations holds the goose migrations for the account schema under
// MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"
