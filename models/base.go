package models

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/domeotech/doors_backend/utils"
	"github.com/google/uuid"
	mysqlDriver "github.com/go-sql-driver/mysql"
)

// IsDuplicateKeyError reports a MySQL 1062 unique-constraint violation.
// The workflow relies on this to turn racing inserts into retries or
// read-back of the winning row.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// IsDuplicateKeyErrorForKey narrows IsDuplicateKeyError to a specific index.
// MySQL 1062 messages carry the violated key name.
func IsDuplicateKeyErrorForKey(err error, keyName string) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062 && strings.Contains(mysqlErr.Message, keyName)
	}
	return false
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func actorFromContext(ctx context.Context) (userId string, userName string) {
	if ctx == nil {
		return "", ""
	}
	userId, _ = utils.GetUserIdFromContext(ctx)
	userName, _ = utils.GetUserNameFromContext(ctx)
	return userId, userName
}
