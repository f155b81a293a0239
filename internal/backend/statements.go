package backend

import (
	"fmt"
	"strings"
	"time"
)

const tablePlaceholder = "%%TABLE_NAME%%"

// statements holds the dialect-specific text for each logical operation.
type statements struct {
	migrate       string
	deleteExpired string
	count         string
	load          string
	store         string
	delete        string
	deleteAll     string

	// encodeTime converts an expiry into the value bound to the expires column.
	encodeTime func(time.Time) any
}

func unixSeconds(t time.Time) any {
	return t.Unix()
}

func timestamptz(t time.Time) any {
	return t.UTC()
}

var dialectStatements = map[Dialect]statements{
	Postgres: {
		migrate: `CREATE TABLE IF NOT EXISTS "%%TABLE_NAME%%" (
			"id" VARCHAR(128) NOT NULL PRIMARY KEY,
			"expires" TIMESTAMP WITH TIME ZONE NULL,
			"session" TEXT NOT NULL
		)`,
		deleteExpired: `DELETE FROM "%%TABLE_NAME%%" WHERE expires < $1`,
		count:         `SELECT COUNT(*) FROM "%%TABLE_NAME%%"`,
		load:          `SELECT session FROM "%%TABLE_NAME%%" WHERE id = $1 AND (expires IS NULL OR expires > $2)`,
		store: `INSERT INTO "%%TABLE_NAME%%" (id, session, expires) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET expires = EXCLUDED.expires, session = EXCLUDED.session`,
		delete:     `DELETE FROM "%%TABLE_NAME%%" WHERE id = $1`,
		deleteAll:  `TRUNCATE "%%TABLE_NAME%%"`,
		encodeTime: timestamptz,
	},
	MySQL: {
		migrate: "CREATE TABLE IF NOT EXISTS `%%TABLE_NAME%%` (" +
			"`id` VARCHAR(128) NOT NULL, " +
			"`expires` BIGINT NULL, " +
			"`session` TEXT NOT NULL, " +
			"PRIMARY KEY (`id`), " +
			"KEY `expires` (`expires`)" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		deleteExpired: "DELETE FROM `%%TABLE_NAME%%` WHERE expires < ?",
		count:         "SELECT COUNT(*) FROM `%%TABLE_NAME%%`",
		load:          "SELECT session FROM `%%TABLE_NAME%%` WHERE id = ? AND (expires IS NULL OR expires > ?)",
		store: "INSERT INTO `%%TABLE_NAME%%` (id, session, expires) VALUES (?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE expires = VALUES(expires), session = VALUES(session)",
		delete:     "DELETE FROM `%%TABLE_NAME%%` WHERE id = ?",
		deleteAll:  "TRUNCATE TABLE `%%TABLE_NAME%%`",
		encodeTime: unixSeconds,
	},
	SQLite: {
		migrate: `CREATE TABLE IF NOT EXISTS "%%TABLE_NAME%%" (
			id TEXT PRIMARY KEY NOT NULL,
			expires INTEGER NULL,
			session TEXT NOT NULL
		)`,
		deleteExpired: `DELETE FROM "%%TABLE_NAME%%" WHERE expires < ?`,
		count:         `SELECT COUNT(*) FROM "%%TABLE_NAME%%"`,
		load:          `SELECT session FROM "%%TABLE_NAME%%" WHERE id = ? AND (expires IS NULL OR expires > ?)`,
		store: `INSERT INTO "%%TABLE_NAME%%" (id, session, expires) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET expires = excluded.expires, session = excluded.session`,
		delete:     `DELETE FROM "%%TABLE_NAME%%" WHERE id = ?`,
		deleteAll:  `DELETE FROM "%%TABLE_NAME%%"`,
		encodeTime: unixSeconds,
	},
}

// statementsFor returns the statement set for dialect with table substituted.
func statementsFor(dialect Dialect, table string) (statements, error) {
	if err := ValidateTableName(table); err != nil {
		return statements{}, err
	}
	base, ok := dialectStatements[dialect]
	if !ok {
		return statements{}, fmt.Errorf("no SQL statements for dialect %s", dialect)
	}

	sub := func(query string) string {
		return strings.ReplaceAll(query, tablePlaceholder, table)
	}
	return statements{
		migrate:       sub(base.migrate),
		deleteExpired: sub(base.deleteExpired),
		count:         sub(base.count),
		load:          sub(base.load),
		store:         sub(base.store),
		delete:        sub(base.delete),
		deleteAll:     sub(base.deleteAll),
		encodeTime:    base.encodeTime,
	}, nil
}
