package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/migration"
	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestInsertAndList(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notifications.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.RunMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := Provide(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, depositID := range []string{"dep_1", "dep_2", "dep_1"} {
		err := repo.Insert(ctx, &notificationdomain.Record{
			ID:        snowflake.ID(1000 + i),
			Type:      notificationdomain.TypeDepositAuthorized,
			DepositID: depositID,
			Status:    "authorized",
			Message:   "Deposit authorized",
			Payload:   datatypes.JSONMap{"hold_amount": float64(10000)},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all, err := repo.List(ctx, notificationdomain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != 1002 {
		t.Fatalf("expected newest first, got %+v", all)
	}

	filtered, err := repo.List(ctx, notificationdomain.ListFilter{DepositID: "dep_1", Limit: 1})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].DepositID != "dep_1" {
		t.Fatalf("unexpected filtered result: %+v", filtered)
	}
	if filtered[0].Payload["hold_amount"] != float64(10000) {
		t.Fatalf("expected payload round trip, got %v", filtered[0].Payload)
	}
}
