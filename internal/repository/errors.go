package repository

import (
	"context"
	"errors"
	"time"

	"chat-server/pkg/apperr"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// DefaultQueryTimeout 未配置时的查询超时
const DefaultQueryTimeout = 5 * time.Second

// mysqlDuplicateEntry MySQL 唯一键冲突错误码
const mysqlDuplicateEntry = 1062

// withTimeout 为单次存储调用设置超时
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// isDuplicate 判断是否唯一键冲突
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// translate 把 gorm 错误转换为 apperr 类别
func translate(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(notFound)
	case isDuplicate(err):
		return apperr.Conflict("User already exists")
	default:
		return apperr.Store("Internal server error", err)
	}
}
