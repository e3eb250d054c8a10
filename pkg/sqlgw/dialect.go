// Package sqlgw is the SQL gateway: it resolves the ten statement
// templates for a dialect and executes them against a *sql.DB connection
// pool, hiding driver-specific BLOB bind quirks from the store engine.
package sqlgw

import "strings"

// Dialect holds the ten parameterised statement templates for one table,
// with ${table} and ${tablePrefix} already resolved.
type Dialect struct {
	Name  string
	Table string

	CreateTable         string
	InsertTemp          string
	UpdateData          string
	Update              string
	Delete              string
	DeleteOlder         string
	UpdateLastModified  string
	SelectMeta          string
	SelectAll           string
	SelectData          string
}

// genericTemplates are the default, ANSI-ish statement forms. A
// different databaseType can supply its own set; the placeholder
// substitution rule is identical.
var genericTemplates = Dialect{
	Name: "generic",

	CreateTable: `CREATE TABLE IF NOT EXISTS ${tablePrefix}${table} (
		ID VARCHAR(255) PRIMARY KEY,
		LENGTH BIGINT,
		LAST_MODIFIED BIGINT,
		DATA BLOB
	)`,
	InsertTemp: `INSERT INTO ${tablePrefix}${table} (ID, LENGTH, LAST_MODIFIED, DATA) VALUES (?, 0, ?, NULL)`,
	UpdateData: `UPDATE ${tablePrefix}${table} SET DATA = ? WHERE ID = ?`,
	Update: `UPDATE ${tablePrefix}${table} SET ID = ?, LENGTH = ?, LAST_MODIFIED = ? ` +
		`WHERE ID = ? AND NOT EXISTS (SELECT ID FROM ${tablePrefix}${table} WHERE ID = ?)`,
	Delete:             `DELETE FROM ${tablePrefix}${table} WHERE ID = ?`,
	DeleteOlder:        `DELETE FROM ${tablePrefix}${table} WHERE LAST_MODIFIED < ?`,
	UpdateLastModified: `UPDATE ${tablePrefix}${table} SET LAST_MODIFIED = ? WHERE ID = ? AND LAST_MODIFIED < ?`,
	SelectMeta:         `SELECT LENGTH, LAST_MODIFIED FROM ${tablePrefix}${table} WHERE ID = ?`,
	SelectAll:          `SELECT ID FROM ${tablePrefix}${table}`,
	SelectData:         `SELECT ID, DATA FROM ${tablePrefix}${table} WHERE ID = ?`,
}

// Resolve substitutes ${table} and ${tablePrefix} in the generic template
// set (or a caller-supplied override set) for one concrete table name.
func Resolve(table, tablePrefix string, overrides *Dialect) Dialect {
	base := genericTemplates
	if overrides != nil {
		base = *overrides
	}

	resolve := func(tmpl string) string {
		r := strings.NewReplacer("${table}", table, "${tablePrefix}", tablePrefix)
		return r.Replace(tmpl)
	}

	return Dialect{
		Name:               base.Name,
		Table:              tablePrefix + table,
		CreateTable:        resolve(base.CreateTable),
		InsertTemp:         resolve(base.InsertTemp),
		UpdateData:         resolve(base.UpdateData),
		Update:             resolve(base.Update),
		Delete:             resolve(base.Delete),
		DeleteOlder:        resolve(base.DeleteOlder),
		UpdateLastModified: resolve(base.UpdateLastModified),
		SelectMeta:         resolve(base.SelectMeta),
		SelectAll:          resolve(base.SelectAll),
		SelectData:         resolve(base.SelectData),
	}
}
