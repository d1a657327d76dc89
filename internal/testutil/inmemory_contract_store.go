package testutil

import (
	"context"

	"github.com/billcycle/billcycle/internal/domain/contract"
)

// InMemoryContractStore implements contract.Repository
type InMemoryContractStore struct {
	*InMemoryStore[*contract.Contract]
}

// NewInMemoryContractStore creates a new in-memory contract store
func NewInMemoryContractStore() *InMemoryContractStore {
	return &InMemoryContractStore{
		InMemoryStore: NewInMemoryStore[*contract.Contract](),
	}
}

func copyContract(c *contract.Contract) *contract.Contract {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

func (s *InMemoryContractStore) Create(ctx context.Context, c *contract.Contract) error {
	return s.InMemoryStore.Create(ctx, c.ID, copyContract(c))
}

func (s *InMemoryContractStore) Get(ctx context.Context, id string) (*contract.Contract, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyContract(c), nil
}

func (s *InMemoryContractStore) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	return s.InMemoryStore.Exists(ctx, func(c *contract.Contract) bool {
		return c.ContractNumber == number
	}), nil
}
