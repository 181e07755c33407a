package db

import (
	"context"
	"fmt"
	"time"

	"chat-server/config"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

// DSN 按驱动类型构建连接字符串
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "", "mysql":
		return MySQLDSN(cfg), nil
	case "postgres":
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, sslmode), nil
	default:
		return "", fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
}

// MySQLDSN 构建 MySQL DSN（reset_db 工具也会使用）
func MySQLDSN(cfg config.DatabaseConfig) string {
	dc := mysqldrv.NewConfig()
	dc.User = cfg.Username
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dc.DBName = cfg.Database
	dc.ParseTime = true
	dc.Loc = time.Local
	if cfg.Charset != "" {
		dc.Params = map[string]string{"charset": cfg.Charset}
	}
	return dc.FormatDSN()
}

// Dialector 返回对应驱动的 gorm 方言
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "postgres" {
		return postgres.Open(dsn), nil
	}
	return mysql.Open(dsn), nil
}

// GormConfig 统一的 gorm 配置
func GormConfig(logSQL bool) *gorm.Config {
	level := gormlogger.Warn
	if logSQL {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),

		// 禁用默认事务（提高性能）
		SkipDefaultTransaction: true,

		// 把驱动的唯一键冲突翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,

		// 命名策略
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true, // 使用单数表名
		},
	}
}

// InitDB 初始化数据库连接
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	gormConfig := GormConfig(cfg.LogSQL)
	gormConfig.PrepareStmt = true

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	// 获取底层的sql.DB对象
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)  // 最大空闲连接数
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)  // 最大打开连接数
	sqlDB.SetConnMaxLifetime(time.Hour) // 连接最大生命周期

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	// 保存全局数据库实例
	DB = db

	return db, nil
}

// CloseDB 关闭数据库连接
func CloseDB() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return fmt.Errorf("获取数据库实例失败: %w", err)
		}
		return sqlDB.Close()
	}
	return nil
}

// HealthCheck 数据库健康检查
func HealthCheck(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("获取数据库实例失败: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	return DB.AutoMigrate(models...)
}
