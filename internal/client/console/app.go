package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chinbo/chinbo-server/internal/client/config"
	"github.com/chinbo/chinbo-server/internal/common"
)

type App struct {
	config *config.Config
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{config: c, in: bufio.NewReader(os.Stdin), out: &lockedWriter{w: os.Stdout}}
}

// Run connects, then prints events while reading commands from stdin. It
// returns when the user exits, stdin ends, ctx is cancelled or the server
// closes the connection.
func (a *App) Run(ctx context.Context) error {
	token := a.config.Token
	if token == "" {
		b, err := GetToken(a.in, a.out)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token = string(b)
		common.WipeByteArray(b)
	}

	dialCtx, cancel := context.WithTimeout(ctx, a.config.HandshakeTimeout)
	s, err := Dial(dialCtx, a.config.ServerURL, token, a.out)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrAuthRejected) {
			return fmt.Errorf("token rejected: %w", err)
		}
		return err
	}
	defer s.Close()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- s.Watch(ctx)
		stop()
	}()

	go func() {
		runREPL(s, bufio.NewScanner(a.in), a.out)
		stop()
	}()

	<-ctx.Done()
	select {
	case err := <-watchErr:
		return err
	default:
		return nil
	}
}

// lockedWriter serializes output from the watcher and the REPL.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
