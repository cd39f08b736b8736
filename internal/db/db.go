package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/chatcommerce/assist/internal/chat"
	"github.com/chatcommerce/assist/internal/commerce"
)

// Connect opens the MySQL connection and runs migrations. Fatal on failure:
// nothing works without the store.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&chat.Session{},
		&chat.Message{},
		&chat.Feedback{},
		&chat.Lead{},
		&commerce.Product{},
	)
}
