package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/client/client"
	"github.com/dmitrijs2005/accountkeeper/internal/client/config"
	"github.com/dmitrijs2005/accountkeeper/internal/client/services"
)

type App struct {
	config   *config.Config
	sessions services.SessionService
	db       *sql.DB
	reader   *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	db, err := client.InitDatabase(ctx, c.SessionDB)
	if err != nil {
		return nil, fmt.Errorf("error initializing session database: %w", err)
	}

	apiClient := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)

	return &App{
		config:   c,
		sessions: services.NewSessionService(apiClient, db),
		db:       db,
		reader:   bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.db.Close()

	if err := a.sessions.Ping(ctx); err != nil {
		printlnFn("Warning: server is not reachable at", a.config.ServerURL)
	}

	printlnFn("accountkeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

func (a *App) isLoggedIn() bool {
	_, err := a.sessions.Current(context.Background())
	return err == nil
}

func (a *App) status() string {
	sess, err := a.sessions.Current(context.Background())
	if err != nil {
		return "guest"
	}
	return sess.Email
}
