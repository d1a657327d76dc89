package testutil

import (
	"context"

	"github.com/billcycle/billcycle/internal/logger"
	"github.com/billcycle/billcycle/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

// MockPostgresClient is a mock implementation of postgres client for testing.
// Transactions execute their function directly; the in-memory stores give
// tests their persistence.
type MockPostgresClient struct {
	logger *logger.Logger
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) postgres.IClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function without a real transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// Querier returns nil; test repositories never touch SQL
func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return nil
}
