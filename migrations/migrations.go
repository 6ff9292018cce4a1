// Package migrations はバイナリに同梱するスキーマ定義。
package migrations

import "embed"

// Files は{version}_{name}.sql形式のマイグレーションファイル群。
//
//go:embed *.sql
var Files embed.FS
