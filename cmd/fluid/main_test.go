package main

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap/zaptest"
)

func TestServeUntilDone_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// returns only once the shutdown goroutine is gone
	err = serveUntilDone(context.Background(), zaptest.NewLogger(t), &http.Server{Addr: ln.Addr().String()})
	require.Error(t, err)
	assert.ErrorContains(t, err, "server failed")
}

func TestServeUntilDone_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := serveUntilDone(ctx, zaptest.NewLogger(t), &http.Server{Addr: "127.0.0.1:0"})
	assert.NoError(t, err)
}

func TestBrowseCommand_StepOrder(t *testing.T) {
	cmd := newBrowseCommand()

	var steps any
	cmd.Action = func(_ context.Context, cmd *cli.Command) error {
		steps = cmd.Value("click")
		return nil
	}

	require.NoError(t, cmd.Run(context.Background(), []string{
		"browse", "--click", "#a", "--submit", "#form", "--click", "#b", "http://example.com/",
	}))

	assert.Equal(t, []browseStep{
		{kind: "click", selector: "#a"},
		{kind: "submit", selector: "#form"},
		{kind: "click", selector: "#b"},
	}, steps)
}
