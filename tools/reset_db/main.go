package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"chat-server/config"
	dbPkg "chat-server/pkg/db"

	_ "github.com/go-sql-driver/mysql"
)

// 子表在前
var tables = []string{"message", "user"}

func main() {
	cfg := config.LoadConfig()
	if cfg.Database.Driver != "" && cfg.Database.Driver != "mysql" {
		log.Fatalf("reset_db only supports mysql, got driver %q", cfg.Database.Driver)
	}

	db, err := sql.Open("mysql", dbPkg.MySQLDSN(cfg.Database))
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Database connection test failed: %v", err)
	}

	fmt.Println("Database connected successfully")
	fmt.Printf("Database: %s@%s:%d/%s\n", cfg.Database.Username, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", tables)
	fmt.Print("Type 'YES' to confirm: ")
	confirm, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.TrimSpace(confirm) != "YES" {
		fmt.Println("Operation cancelled")
		return
	}

	// 同一个连接上关闭外键检查
	conn, err := db.Conn(context.Background())
	if err != nil {
		log.Fatalf("Acquire connection failed: %v", err)
	}
	defer conn.Close()

	_, _ = conn.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS=0")
	defer func() { _, _ = conn.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS=1") }()

	failed := false
	for _, table := range tables {
		fmt.Printf("Clearing table %s... ", table)
		if _, err := conn.ExecContext(context.Background(), fmt.Sprintf("DELETE FROM `%s`", table)); err != nil {
			fmt.Printf("Failed: %v\n", err)
			failed = true
			continue
		}
		if _, err := conn.ExecContext(context.Background(), fmt.Sprintf("ALTER TABLE `%s` AUTO_INCREMENT = 1", table)); err != nil {
			fmt.Printf("Cleared, auto-increment reset failed: %v\n", err)
			continue
		}
		fmt.Println("Success")
	}

	if failed {
		fmt.Println("\nDatabase reset finished with errors")
		return
	}
	fmt.Println("\nDatabase reset completed!")
	fmt.Println("All table data cleared, table structure preserved")
}
