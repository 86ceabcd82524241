// Command admin grants administrator rights to an account, creating it when
// it does not exist. It reads the same configuration as the server.
//
//	admin -d postgres://... -email root@example.com
package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/dmitrijs2005/rentdesk/internal/admincli"
	"github.com/dmitrijs2005/rentdesk/internal/dbx"
	"github.com/dmitrijs2005/rentdesk/internal/logging"
	"github.com/dmitrijs2005/rentdesk/internal/server/config"
	"github.com/dmitrijs2005/rentdesk/internal/server/notify"
	"github.com/dmitrijs2005/rentdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rentdesk/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	ctx := context.Background()

	opts, err := admincli.ParseOptions(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// promotion sends no mail; the log transport keeps the service contract
	dispatcher := notify.NewDispatcher(notify.NewLogTransport(logger), 1, 1, cfg.NotificationSendTimeout, nil, logger)
	defer dispatcher.Close(ctx)
	notifier := notify.NewMailNotifier(dispatcher, cfg.BaseURL, cfg.DefaultLanguage, logger)

	users := services.NewUserService(dbx.NewSQLTransactor(db, nil), rm, nil, notifier, nil, cfg, logger)

	if err := admincli.Run(ctx, opts, users, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}
