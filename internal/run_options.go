package internal

import (
	"context"
	"net"
	"time"
)

// RunOption configures a single Run call. Settings given here override
// the ones the App was built with.
type RunOption func(*runConfig)

// runConfig holds runtime configuration for the server.
type runConfig struct {
	ready           func(net.Addr)
	address         string
	shutdownTimeout time.Duration
	startupHooks    []func(context.Context) error
	shutdownHooks   []func(context.Context) error
}

// buildRunConfig creates a runConfig from the app defaults and opts.
func buildRunConfig(a *App, opts ...RunOption) *runConfig {
	cfg := &runConfig{
		address:         a.address,
		shutdownTimeout: a.shutdownTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Address sets the HTTP server address.
func Address(addr string) RunOption {
	return func(c *runConfig) {
		if addr != "" {
			c.address = addr
		}
	}
}

// ShutdownTimeout sets the timeout for graceful shutdown.
// This applies to both the HTTP server and shutdown hooks.
func ShutdownTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// StartupHook registers a function to run before the server accepts
// requests. A failing hook aborts Run.
func StartupHook(fn func(context.Context) error) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.startupHooks = append(c.startupHooks, fn)
		}
	}
}

// ShutdownHook registers a cleanup function to run during shutdown,
// after the App's own hooks.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.shutdownHooks = append(c.shutdownHooks, fn)
		}
	}
}

// OnReady is called with the bound address once the listener is open.
// Useful with Address(":0") in tests.
func OnReady(fn func(net.Addr)) RunOption {
	return func(c *runConfig) {
		c.ready = fn
	}
}
