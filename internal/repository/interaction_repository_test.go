package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	// gorm 翻译后的统一错误
	assert.True(t, isDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKeyErr(fmt.Errorf("写入收藏失败: %w", gorm.ErrDuplicatedKey)))

	// 驱动原生的唯一键冲突
	assert.True(t, isDuplicateKeyErr(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7-42' for key 'uniq_user_listing'"}))

	// 其它错误不应被吞掉
	assert.False(t, isDuplicateKeyErr(nil))
	assert.False(t, isDuplicateKeyErr(errors.New("connection refused")))
	assert.False(t, isDuplicateKeyErr(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.False(t, isDuplicateKeyErr(gorm.ErrRecordNotFound))
}
