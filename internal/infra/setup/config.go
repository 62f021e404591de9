package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的 SQL 驱动
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DBOptions 描述 SQL 存储的连接参数
type DBOptions struct {
	Driver     string // mysql 或 sqlite
	User       string
	Password   string
	Host       string
	Port       string
	Name       string
	SQLitePath string // 例如 "rooms.db" 或 "file::memory:?cache=shared"
}

// InitDB 根据驱动初始化 GORM 连接
func InitDB(opts DBOptions) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverMySQL:
		dsn, err := mysqlDSN(opts)
		if err != nil {
			return nil, err
		}
		dialector = mysql.Open(dsn)
	case DriverSQLite:
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path must be set")
		}
		dialector = sqlite.Open(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true, // 将唯一约束冲突翻译为 gorm.ErrDuplicatedKey
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB() // 获取底层的 *sql.DB 对象
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.Driver == DriverSQLite {
		// SQLite 只允许一个写连接，避免 "database is locked"
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	logrus.WithField("driver", opts.Driver).Info("SQL database connected")
	return db, nil
}

// mysqlDSN 构建 MySQL 连接字符串 (DSN)
func mysqlDSN(opts DBOptions) (string, error) {
	if opts.User == "" {
		return "", fmt.Errorf("DB_USER must be set for the mysql driver")
	}
	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port == "" {
		port = "3306"
	}
	name := opts.Name
	if name == "" {
		name = "discussion_room"
	}
	// clientFoundRows=true: UPDATE 的 RowsAffected 返回匹配行数，用于判断房间是否存在
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		opts.User, opts.Password, host, port, name), nil
}

// CloseDB 关闭底层连接池
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitRedis 初始化 Redis 连接并 Ping 检查
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute, // 连接最大存活时间
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Redis connected")
	return client, nil
}
