package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/mail"
	"os"
	"strconv"
	"strings"

	"ebookGen/internal/auth"
	"ebookGen/internal/config"
	"ebookGen/internal/database"
	"ebookGen/internal/ebook"
	"ebookGen/internal/store"
)

func main() {
	var (
		email      = flag.String("email", "", "初始账号邮箱（必填）")
		firstName  = flag.String("first-name", "", "名（可选）")
		lastName   = flag.String("last-name", "", "姓（可选）")
		driver     = flag.String("db-driver", "", "数据库驱动 postgres/sqlite（可选，默认读 DATABASE_DRIVER）")
		dbHost     = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort     = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName     = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser     = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass     = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode    = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
		sqlitePath = flag.String("sqlite-path", "", "SQLite 文件路径（可选，默认读 DATABASE_SQLITE_PATH）")
	)
	flag.Parse()

	addr, err := mail.ParseAddress(strings.TrimSpace(*email))
	if err != nil {
		log.Fatal("missing or invalid required flag: --email")
	}

	dbCfg, err := loadDatabaseConfig(databaseFlags{
		driver:     *driver,
		host:       *dbHost,
		port:       *dbPort,
		name:       *dbName,
		user:       *dbUser,
		password:   *dbPass,
		sslmode:    *sslMode,
		sqlitePath: *sqlitePath,
	})
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	st, err := store.Open(dbCfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	password, err := auth.GenerateRandomPassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	user := database.User{
		Email:              strings.ToLower(addr.Address),
		PasswordHash:       hashed,
		FirstName:          strings.TrimSpace(*firstName),
		LastName:           strings.TrimSpace(*lastName),
		MustChangePassword: true,
	}
	if err := st.CreateUser(context.Background(), &user); err != nil {
		if errors.Is(err, ebook.ErrConflict) {
			log.Fatalf("user %q already exists", user.Email)
		}
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("已创建初始账号（首次登录需强制改密）：\n")
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：请立即登录并修改密码（该密码仅显示一次）。\n")
}

type databaseFlags struct {
	driver     string
	host       string
	port       int
	name       string
	user       string
	password   string
	sslmode    string
	sqlitePath string
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func loadDatabaseConfig(f databaseFlags) (config.DatabaseConfig, error) {
	driver := strings.ToLower(firstNonEmpty(f.driver, os.Getenv("DATABASE_DRIVER"), config.DriverPostgres))

	switch driver {
	case config.DriverSQLite:
		path := firstNonEmpty(f.sqlitePath, os.Getenv("DATABASE_SQLITE_PATH"), "ebookgen.db")
		return config.DatabaseConfig{Driver: driver, SQLitePath: path}, nil
	case config.DriverPostgres:
	case config.DriverMemory:
		return config.DatabaseConfig{}, errors.New("memory driver cannot persist accounts, use postgres or sqlite")
	default:
		return config.DatabaseConfig{}, fmt.Errorf("unsupported database driver %q", driver)
	}

	port := f.port
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if port <= 0 {
		port = 5432
	}

	cfg := config.DatabaseConfig{
		Driver:   driver,
		Host:     firstNonEmpty(f.host, os.Getenv("DATABASE_HOST"), "localhost"),
		Port:     port,
		Name:     firstNonEmpty(f.name, os.Getenv("POSTGRES_DB"), os.Getenv("DB_NAME")),
		User:     firstNonEmpty(f.user, os.Getenv("POSTGRES_USER"), os.Getenv("DB_USER")),
		Password: firstNonEmpty(f.password, os.Getenv("POSTGRES_PASSWORD"), os.Getenv("DB_PASSWORD")),
		SSLMode:  firstNonEmpty(f.sslmode, os.Getenv("DATABASE_SSLMODE"), "disable"),
	}
	if cfg.Name == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if cfg.User == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if cfg.Password == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}
	return cfg, nil
}
