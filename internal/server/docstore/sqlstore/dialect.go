package sqlstore

// Dialect holds the SQL text and driver settings for one database engine.
type Dialect struct {
	Name         string
	driver       string
	gooseDialect string
	migrations   string
	singleConn   bool

	get      string
	set      string
	create   string
	update   string
	updateIf string
	exists   string
	remove   string
	list     string

	// fieldArg converts a top-level field name to the form the dialect's
	// JSON accessor expects.
	fieldArg func(field string) string
}

// Postgres stores documents as JSONB through the pgx stdlib driver.
var Postgres = &Dialect{
	Name:         "postgres",
	driver:       "pgx",
	gooseDialect: "pgx",
	migrations:   "postgres",

	get: `SELECT value FROM documents WHERE path = $1`,
	set: `INSERT INTO documents (path, parent, value) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
	create: `INSERT INTO documents (path, parent, value) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (path) DO NOTHING`,
	update: `UPDATE documents SET value = value || $2::jsonb, updated_at = now()
		WHERE path = $1 AND jsonb_typeof(value) = 'object'`,
	updateIf: `UPDATE documents SET value = value || $2::jsonb, updated_at = now()
		WHERE path = $1 AND value->>$3::text = $4`,
	exists: `SELECT jsonb_typeof(value) = 'object' FROM documents WHERE path = $1`,
	remove: `DELETE FROM documents WHERE path = $1`,
	list:   `SELECT path, value FROM documents WHERE parent = $1 ORDER BY path`,

	fieldArg: func(field string) string { return field },
}

// SQLite stores documents as JSON text on the pure-Go modernc driver.
// Writers are serialized over a single connection.
var SQLite = &Dialect{
	Name:         "sqlite",
	driver:       "sqlite",
	gooseDialect: "sqlite3",
	migrations:   "sqlite",
	singleConn:   true,

	get: `SELECT value FROM documents WHERE path = ?`,
	set: `INSERT INTO documents (path, parent, value) VALUES (?, ?, json(?))
		ON CONFLICT (path) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
	create: `INSERT INTO documents (path, parent, value) VALUES (?, ?, json(?))
		ON CONFLICT (path) DO NOTHING`,
	update: `UPDATE documents SET value = json_patch(value, ?2), updated_at = CURRENT_TIMESTAMP
		WHERE path = ?1 AND json_type(value) = 'object'`,
	updateIf: `UPDATE documents SET value = json_patch(value, ?2), updated_at = CURRENT_TIMESTAMP
		WHERE path = ?1 AND json_extract(value, ?3) = ?4`,
	exists: `SELECT json_type(value) = 'object' FROM documents WHERE path = ?`,
	remove: `DELETE FROM documents WHERE path = ?`,
	list:   `SELECT path, value FROM documents WHERE parent = ? ORDER BY path`,

	fieldArg: func(field string) string { return `$."` + field + `"` },
}
