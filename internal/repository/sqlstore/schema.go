package sqlstore

import (
	"github.com/huynhanx03/go-thumb/pkg/database/sqldb"
)

const (
	tableThumb = "thumb"
	tableBlog  = "blog"

	colID         = "id"
	colUserID     = "user_id"
	colBlogID     = "blog_id"
	colCreateTime = "create_time"
	colThumbCount = "thumb_count"
)

var ddl = map[string][]string{
	sqldb.DriverMySQL: {
		"CREATE TABLE IF NOT EXISTS `thumb` (" +
			"`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, " +
			"`user_id` BIGINT NOT NULL, " +
			"`blog_id` BIGINT NOT NULL, " +
			"`create_time` DATETIME NOT NULL, " +
			"UNIQUE KEY `uk_thumb_user_blog` (`user_id`, `blog_id`), " +
			"KEY `idx_thumb_blog` (`blog_id`))",
		"CREATE TABLE IF NOT EXISTS `blog` (" +
			"`id` BIGINT NOT NULL PRIMARY KEY, " +
			"`thumb_count` BIGINT NOT NULL DEFAULT 0)",
	},
	sqldb.DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS "thumb" (` +
			`"id" BIGSERIAL PRIMARY KEY, ` +
			`"user_id" BIGINT NOT NULL, ` +
			`"blog_id" BIGINT NOT NULL, ` +
			`"create_time" TIMESTAMP NOT NULL, ` +
			`CONSTRAINT "uk_thumb_user_blog" UNIQUE ("user_id", "blog_id"))`,
		`CREATE INDEX IF NOT EXISTS "idx_thumb_blog" ON "thumb" ("blog_id")`,
		`CREATE TABLE IF NOT EXISTS "blog" (` +
			`"id" BIGINT PRIMARY KEY, ` +
			`"thumb_count" BIGINT NOT NULL DEFAULT 0)`,
	},
	sqldb.DriverSQLite: {
		"CREATE TABLE IF NOT EXISTS `thumb` (" +
			"`id` INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"`user_id` INTEGER NOT NULL, " +
			"`blog_id` INTEGER NOT NULL, " +
			"`create_time` DATETIME NOT NULL, " +
			"UNIQUE (`user_id`, `blog_id`))",
		"CREATE INDEX IF NOT EXISTS `idx_thumb_blog` ON `thumb` (`blog_id`)",
		"CREATE TABLE IF NOT EXISTS `blog` (" +
			"`id` INTEGER PRIMARY KEY, " +
			"`thumb_count` INTEGER NOT NULL DEFAULT 0)",
	},
}
