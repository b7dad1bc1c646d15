package sftpclient

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload_MissingCredentials(t *testing.T) {
	err := Upload(context.Background(), Config{Host: "sftp.test"}, strings.NewReader("x"), "a.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SFTP_HOST")
}

func TestUpload_RequiresHostKeyPolicy(t *testing.T) {
	cfg := Config{Host: "sftp.test", User: "u", Pass: "p"}
	err := Upload(context.Background(), cfg, strings.NewReader("x"), "a.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HostKeyCallback")
}

func TestUpload_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{Host: "127.0.0.1", Port: 1, User: "u", Pass: "p", InsecureIgnoreHostKey: true}
	err := Upload(ctx, cfg, strings.NewReader("x"), "a.xlsx")
	assert.Error(t, err)
}
