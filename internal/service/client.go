package service

import (
	"context"
	"fmt"
	"time"

	"loanbook/internal/domain"
	"loanbook/internal/ledger"

	"github.com/google/uuid"
)

type ClientRepository interface {
	FindClient(ctx context.Context, id string) (*domain.Client, error)
	CreateClient(ctx context.Context, c *domain.Client) error
	UpdateClient(ctx context.Context, c *domain.Client) error
	DeleteClient(ctx context.Context, id string) error
	ListClients(ctx context.Context) ([]domain.Client, error)
}

type ClientLoanRepository interface {
	CountLoansByClient(ctx context.Context, clientID string) (int64, error)
}

type ClientService struct {
	clients ClientRepository
	loans   ClientLoanRepository
	audit   ledger.AuditSink
}

func NewClientService(clients ClientRepository, loans ClientLoanRepository, audit ledger.AuditSink) *ClientService {
	return &ClientService{clients: clients, loans: loans, audit: audit}
}

type ClientInput struct {
	CompanyID string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

func (s *ClientService) CreateClient(ctx context.Context, actor domain.Actor, in ClientInput) (*domain.Client, error) {
	if in.FirstName == "" && in.LastName == "" {
		return nil, domain.Invalid("firstName", "firstName or lastName is required")
	}

	now := time.Now()
	client := &domain.Client{
		ID:        uuid.NewString(),
		CompanyID: in.CompanyID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: &now,
		UpdatedAt: &now,
	}

	if err := s.clients.CreateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	record(ctx, s.audit, actor, "client created", "client", client.ID, nil, client)
	return client, nil
}

func (s *ClientService) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	return s.clients.FindClient(ctx, id)
}

func (s *ClientService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.clients.ListClients(ctx)
}

func (s *ClientService) UpdateClient(ctx context.Context, actor domain.Actor, id string, in ClientInput) (*domain.Client, error) {
	client, err := s.clients.FindClient(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *client

	if in.FirstName != "" {
		client.FirstName = in.FirstName
	}
	if in.LastName != "" {
		client.LastName = in.LastName
	}
	if in.Email != "" {
		client.Email = in.Email
	}
	if in.Phone != "" {
		client.Phone = in.Phone
	}
	now := time.Now()
	client.UpdatedAt = &now

	if err := s.clients.UpdateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}

	record(ctx, s.audit, actor, "client updated", "client", client.ID, &before, client)
	return client, nil
}

// DeleteClient removes a client that no loans reference.
func (s *ClientService) DeleteClient(ctx context.Context, actor domain.Actor, id string) error {
	client, err := s.clients.FindClient(ctx, id)
	if err != nil {
		return err
	}

	n, err := s.loans.CountLoansByClient(ctx, id)
	if err != nil {
		return fmt.Errorf("count loans: %w", err)
	}
	if n > 0 {
		return domain.ErrClientHasLoans
	}

	if err := s.clients.DeleteClient(ctx, id); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}

	record(ctx, s.audit, actor, "client deleted", "client", id, client, nil)
	return nil
}
