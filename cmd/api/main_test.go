package main

import (
	"errors"
	"net/http"
	"os"
	"syscall"
	"testing"
)

func TestWaitForShutdown(t *testing.T) {
	t.Run("signal", func(t *testing.T) {
		quit := make(chan os.Signal, 1)
		quit <- syscall.SIGTERM
		sig, err := waitForShutdown(quit, make(chan error))
		if err != nil || sig != syscall.SIGTERM {
			t.Fatalf("expected SIGTERM, got %v, %v", sig, err)
		}
	})

	t.Run("listen failure is an error", func(t *testing.T) {
		serverErr := make(chan error, 1)
		serverErr <- errors.New("listen tcp :5000: bind: address already in use")
		sig, err := waitForShutdown(make(chan os.Signal), serverErr)
		if err == nil || sig != nil {
			t.Fatalf("expected the listen error, got %v, %v", sig, err)
		}
	})

	t.Run("closed server is not an error", func(t *testing.T) {
		serverErr := make(chan error, 1)
		serverErr <- http.ErrServerClosed
		sig, err := waitForShutdown(make(chan os.Signal), serverErr)
		if err != nil || sig != nil {
			t.Fatalf("expected a clean stop, got %v, %v", sig, err)
		}
	})
}
