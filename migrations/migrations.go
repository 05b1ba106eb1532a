// Package migrations содержит SQL-схему Artflow.
//
// Файлы применяются в лексикографическом порядке и написаны идемпотентно
// (IF NOT EXISTS), поэтому их можно выполнять при каждом старте.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
