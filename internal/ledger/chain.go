package ledger

import (
	"context"
	"errors"
	"fmt"

	"loanbook/internal/domain"
	"loanbook/pkg/money"
)

// maxChainDepth bounds chain traversal. Chains are built one merge at a
// time, so anything this deep is malformed data.
const maxChainDepth = 64

// Chain is one resolved payoff chain: the root loan plus every loan that
// was merged into it, directly or transitively.
type Chain struct {
	RootID          string
	LoanIDs         []string
	TotalBaseAmount float64
}

// Contains reports whether a loan belongs to the chain.
func (c *Chain) Contains(loanID string) bool {
	for _, id := range c.LoanIDs {
		if id == loanID {
			return true
		}
	}
	return false
}

// ChainLoanStore is the slice of loan storage chain resolution needs.
type ChainLoanStore interface {
	FindLoan(ctx context.Context, id string) (*domain.Loan, error)
	ListLoansByParents(ctx context.Context, parentIDs []string) ([]domain.Loan, error)
}

// ChainResolver walks the parent-link forest of merged loans.
type ChainResolver struct {
	loans ChainLoanStore
}

func NewChainResolver(loans ChainLoanStore) *ChainResolver {
	return &ChainResolver{loans: loans}
}

// Resolve expands the payoff chain the given loan belongs to. The root is
// the loan's parent link when set, otherwise the loan itself; from there
// every loan whose parent pointer leads back into the set is collected.
//
// Parent links form a forest by construction (each loan has at most one
// parent, set only at merge time), but the walk still guards with a
// visited set and a depth bound and fails closed if the data is malformed.
func (r *ChainResolver) Resolve(ctx context.Context, loan *domain.Loan) (*Chain, error) {
	rootID := loan.ChainRootID()

	chain := &Chain{RootID: rootID}
	visited := map[string]bool{rootID: true}
	chain.LoanIDs = append(chain.LoanIDs, rootID)

	root, err := r.loans.FindLoan(ctx, rootID)
	switch {
	case err == nil:
		chain.TotalBaseAmount = root.BaseAmount
	case errors.Is(err, domain.ErrLoanNotFound):
		// Dangling parent pointer: keep the id in the set so payments
		// recorded against it still count, with no principal to add.
	default:
		return nil, fmt.Errorf("resolve chain root %s: %w", rootID, err)
	}

	frontier := []string{rootID}
	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxChainDepth {
			return nil, fmt.Errorf("chain from %s exceeds depth %d: %w", rootID, maxChainDepth, domain.ErrChainCycle)
		}

		children, err := r.loans.ListLoansByParents(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("resolve chain from %s: %w", rootID, err)
		}

		var next []string
		for _, child := range children {
			if visited[child.ID] {
				return nil, fmt.Errorf("loan %s revisited while resolving chain from %s: %w", child.ID, rootID, domain.ErrChainCycle)
			}
			visited[child.ID] = true
			chain.LoanIDs = append(chain.LoanIDs, child.ID)
			chain.TotalBaseAmount = money.Sum(chain.TotalBaseAmount, child.BaseAmount)
			next = append(next, child.ID)
		}
		frontier = next
	}

	return chain, nil
}
