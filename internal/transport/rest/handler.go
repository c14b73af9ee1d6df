package rest

import (
	"context"
	"net/http"
	"time"

	"loanbook/internal/domain"
	"loanbook/internal/ledger"
	"loanbook/internal/repository"
	"loanbook/internal/service"
	"loanbook/internal/transport/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type LoanService interface {
	CreateLoan(ctx context.Context, actor domain.Actor, in service.CreateLoanInput) (*domain.Loan, error)
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	ListLoans(ctx context.Context) ([]domain.Loan, error)
	ListLoansByClient(ctx context.Context, clientID string) ([]domain.Loan, error)
	UpdateLoan(ctx context.Context, actor domain.Actor, id string, in service.UpdateLoanInput) (*domain.Loan, error)
	DeleteLoan(ctx context.Context, actor domain.Actor, id string) error
}

type ClientService interface {
	CreateClient(ctx context.Context, actor domain.Actor, in service.ClientInput) (*domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	UpdateClient(ctx context.Context, actor domain.Actor, id string, in service.ClientInput) (*domain.Client, error)
	DeleteClient(ctx context.Context, actor domain.Actor, id string) error
}

type LedgerEngine interface {
	AddPayment(ctx context.Context, actor domain.Actor, in ledger.AddPaymentInput) (*ledger.PaymentResult, error)
	EditPayment(ctx context.Context, actor domain.Actor, paymentID string, upd ledger.PaymentUpdate, currentTerm int) (*ledger.PaymentResult, error)
	DeletePayment(ctx context.Context, actor domain.Actor, paymentID string) error
	GetPayments(ctx context.Context, loanID string) (*ledger.LoanPayments, error)
	GetAllPaymentsForClient(ctx context.Context, clientID string) (*ledger.ClientLedger, error)
	GetLastPaymentDate(ctx context.Context, loanID string) (*time.Time, error)
}

type ExportService interface {
	StartPaymentsExport(ctx context.Context, selected []string, filter repository.LedgerFilter, userID int64) (string, error)
	GetExports(ctx context.Context, userID int64) ([]interface{}, error)
	GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error)
}

type AuditService interface {
	List(ctx context.Context, f repository.AuditFilter) ([]domain.AuditEntry, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

type DocumentStore interface {
	UploadDocument(ctx context.Context, fileName string, data []byte, contentType string) (string, error)
	GetTemporaryURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Handler struct {
	loans     LoanService
	clients   ClientService
	engine    LedgerEngine
	exports   ExportService
	audit     AuditService
	users     UserFinder
	documents DocumentStore
}

func NewHandler(loans LoanService, clients ClientService, engine LedgerEngine, exports ExportService, audit AuditService, users UserFinder, documents DocumentStore) *Handler {
	return &Handler{
		loans:     loans,
		clients:   clients,
		engine:    engine,
		exports:   exports,
		audit:     audit,
		users:     users,
		documents: documents,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.createLoan)
		r.Get("/", h.listLoans)
		r.Get("/{loan_id}", h.getLoan)
		r.Put("/{loan_id}", h.updateLoan)
		r.Delete("/{loan_id}", h.deleteLoan)
		r.Get("/{loan_id}/payments", h.getLoanPayments)
		r.Get("/{loan_id}/payments/last", h.getLastPaymentDate)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.addPayment)
		r.Put("/{payment_id}", h.editPayment)
		r.Delete("/{payment_id}", h.deletePayment)
	})

	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.createClient)
		r.Get("/", h.listClients)
		r.Get("/{client_id}", h.getClient)
		r.Put("/{client_id}", h.updateClient)
		r.Delete("/{client_id}", h.deleteClient)
		r.Get("/{client_id}/payments", h.getClientPayments)
		r.Get("/{client_id}/loans", h.listClientLoans)
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
		r.Post("/payments", h.exportPayments)
	})

	r.Get("/audit", h.listAudit)

	r.Post("/documents/upload", h.uploadDocument)
	r.Get("/documents/{document_key}", h.getDocumentURL)

	return r
}

// actor resolves the authenticated user into audit attribution. A missing
// user row still yields a valid actor; only the role is left blank.
func (h *Handler) actor(r *http.Request) (domain.Actor, error) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		return domain.Actor{}, err
	}
	actor := domain.Actor{ID: userID}
	if h.users != nil {
		if u, err := h.users.FindByID(r.Context(), userID); err == nil {
			actor.Role = u.Role
		}
	}
	return actor, nil
}
