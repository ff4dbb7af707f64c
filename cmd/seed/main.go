package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	_ "modernc.org/sqlite"

	"github.com/sahithikokkula/sqlite-hll/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", slog.String("err", err.Error()))
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		slog.Error("Open db failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := seedVisits(db, 200000); err != nil {
		slog.Error("Seeding visits failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	fmt.Println("Seed done.")
}

// seedVisits creates a visits table whose columns cover every value kind the
// aggregate accepts: integers, floats, text and NULLs.
func seedVisits(db *sql.DB, n int) error {
	if _, err := db.Exec(`DROP TABLE IF EXISTS visits`); err != nil {
		return fmt.Errorf("drop visits: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE visits (
        id INTEGER PRIMARY KEY,
        user_id INTEGER NOT NULL,
        country TEXT NOT NULL,
        amount REAL NOT NULL,
        referrer TEXT,
        session
    )`); err != nil {
		return fmt.Errorf("create visits: %w", err)
	}

	rng := rand.New(rand.NewSource(42))
	countries := []string{"US", "IN", "DE", "FR", "GB", "BR", "CA", "AU", "JP", "MX"}
	referrers := []string{"google", "bing", "newsletter", "twitter"}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO visits (user_id, country, amount, referrer, session) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		var referrer any
		if rng.Float64() < 0.6 {
			referrer = referrers[rng.Intn(len(referrers))]
		}

		// session mixes storage classes on purpose
		var session any
		switch i % 3 {
		case 0:
			session = int64(rng.Intn(50000))
		case 1:
			session = float64(rng.Intn(50000)) + 0.5
		default:
			session = fmt.Sprintf("s-%d", rng.Intn(50000))
		}

		// amount heavy-tail
		amount := 10 + rng.ExpFloat64()*50

		if _, err := stmt.Exec(rng.Intn(75000)+1, countries[rng.Intn(len(countries))], amount, referrer, session); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}

		if i%20000 == 0 && i > 0 {
			slog.Info("Seeding visits", slog.Int("inserted", i), slog.Int("total", n))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("Seeded visits", slog.Int("rows", n))
	return nil
}
