// Package db embeds the storefront database schema.
package db

import _ "embed"

// Schema holds the DDL for the catalog, cart, coupon, order and payment
// tables. Applied on startup by repository.RunMigrations.
//
//go:embed migrations/001_schema.sql
var Schema string
