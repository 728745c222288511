// Package testutil provides testing utilities for planes-nearby plugins.
// This file provides a TestEnv for integration testing against the mock server.
package testutil

import (
	"fmt"

	"planesnearby/internal/ha"
	pkgha "planesnearby/pkg/ha"

	"go.uber.org/zap"
)

// TestEnv provides a complete test environment for plugin integration tests.
// It creates real internal implementations but exposes them via pkg interfaces,
// allowing external modules to write integration tests without importing internal packages.
type TestEnv struct {
	// Public fields - exposed via pkg interfaces
	Server   *MockHAServer
	HAClient pkgha.Client
	Logger   *zap.Logger

	// Internal references for cleanup and advanced usage
	internalClient *ha.Client
}

// NewTestEnv creates a fully configured test environment with mock HA server
// and a connected client.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv("localhost:8123", "test_token")
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
//
//	// Use env.HAClient in your plugin tests
func NewTestEnv(addr, token string) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()

	// Start mock HA server
	server := NewMockHAServer(addr, token)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mock server: %w", err)
	}

	// Create and connect client
	client := ha.NewClient(fmt.Sprintf("ws://%s/api/websocket", addr), token, logger)
	if err := client.Connect(); err != nil {
		server.Stop()
		return nil, fmt.Errorf("failed to connect client: %w", err)
	}

	return &TestEnv{
		Server:         server,
		HAClient:       pkgha.WrapClient(client),
		Logger:         logger,
		internalClient: client,
	}, nil
}

// InternalClient exposes the underlying client for tests inside this module.
func (e *TestEnv) InternalClient() *ha.Client {
	return e.internalClient
}

// Cleanup stops all components in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	if e.internalClient != nil {
		e.internalClient.Disconnect()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
}

// GetServiceCalls returns all service calls made to the mock server.
// Useful for asserting that plugins made expected HA service calls.
func (e *TestEnv) GetServiceCalls() []ServiceCall {
	return e.Server.GetServiceCalls()
}

// GetPublishedStates returns all entity publications made to the mock server.
func (e *TestEnv) GetPublishedStates() []PublishedState {
	return e.Server.GetPublishedStates()
}
