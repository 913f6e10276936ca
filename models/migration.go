package models

import (
	"log"

	"bitbucket.org/domeotech/doors_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Client{}, &User{},
		&Quote{}, &Invoice{}, &Order{}, &SupplierOrder{},
		&DocumentHistory{},
		&Notification{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
