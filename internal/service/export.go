package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"loanbook/internal/clients"
	"loanbook/internal/domain"
	"loanbook/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type ExportPaymentRepository interface {
	List(ctx context.Context, f repository.LedgerFilter) ([]domain.LoanPayment, error)
	HasMoreThan(ctx context.Context, limit int64, f repository.LedgerFilter) (bool, error)
}

type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	UserID   int64     `json:"user_id"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute

	maxPaymentsForExport = 500_000
)

type paymentColumn struct {
	Header string
	Value  func(p domain.LoanPayment) any
}

var paymentColumns = map[string]paymentColumn{
	"id":            {Header: "ID", Value: func(p domain.LoanPayment) any { return p.ID }},
	"loan_id":       {Header: "Loan ID", Value: func(p domain.LoanPayment) any { return p.LoanID }},
	"client_id":     {Header: "Client ID", Value: func(p domain.LoanPayment) any { return p.ClientID }},
	"paid_amount":   {Header: "Paid amount", Value: func(p domain.LoanPayment) any { return p.PaidAmount }},
	"paid_date":     {Header: "Paid date", Value: func(p domain.LoanPayment) any { return p.PaidDate.Format("2006-01-02") }},
	"check_number":  {Header: "Check number", Value: func(p domain.LoanPayment) any { return p.CheckNumber }},
	"payoff_letter": {Header: "Payoff letter", Value: func(p domain.LoanPayment) any { return p.PayoffLetter }},
	"created_at":    {Header: "Created", Value: func(p domain.LoanPayment) any { return timePtr(p.CreatedAt) }},
	"updated_at":    {Header: "Updated", Value: func(p domain.LoanPayment) any { return timePtr(p.UpdatedAt) }},
}

func timePtr(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02 15:04:05")
}

// ExportService renders ledger exports to xlsx in the background, tracking
// progress in Redis and notifying the requesting user over websocket.
type ExportService struct {
	repo    ExportPaymentRepository
	redis   *clients.RedisClient
	storage *clients.StorageClient
	ws      *clients.WebSocketClient
}

func NewExportService(repo ExportPaymentRepository, redis *clients.RedisClient, storage *clients.StorageClient, ws *clients.WebSocketClient) *ExportService {
	return &ExportService{repo: repo, redis: redis, storage: storage, ws: ws}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

func (s *ExportService) StartPaymentsExport(ctx context.Context, selected []string, filter repository.LedgerFilter, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = []string{"paid_date", "id", "loan_id", "client_id", "paid_amount", "check_number", "payoff_letter", "created_at", "updated_at"}
	}

	tooMany, err := s.repo.HasMoreThan(ctx, maxPaymentsForExport, filter)
	if err != nil {
		return "", err
	}
	if tooMany {
		return "", fmt.Errorf("too many payments to export (more than %d records)", maxPaymentsForExport)
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "payments",
		UserID:   userID,
		Filters:  buildFiltersMap(filter, selected),
		Progress: 0,
		Created:  now,
	}
	_ = s.saveStatus(ctx, status)

	go s.runPaymentsExport(context.Background(), exportID, selected, filter, userID, now)

	return exportID, nil
}

func (s *ExportService) runPaymentsExport(ctx context.Context, exportID string, selected []string, filter repository.LedgerFilter, userID int64, createdAt time.Time) {
	status := &ExportStatus{
		Key:      exportID,
		Type:     "payments",
		UserID:   userID,
		Filters:  buildFiltersMap(filter, selected),
		Progress: 0,
		Created:  createdAt,
	}

	fail := func(err error) {
		errStr := err.Error()
		log.Printf("[EXPORT] %s failed: %v", exportID, err)
		status.Error = &errStr
		status.Progress = 100
		_ = s.saveStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
		}
	}

	payments, err := s.repo.List(ctx, filter)
	if err != nil {
		fail(fmt.Errorf("list payments: %w", err))
		return
	}

	var cols []paymentColumn
	for _, key := range selected {
		col, ok := paymentColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		fail(errors.New("no exportable fields selected"))
		return
	}

	f := excelize.NewFile()
	sheet := "Payments"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(payments)
	chunkSize := 1000
	for i, p := range payments {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, i+2)
			_ = f.SetCellValue(sheet, cell, col.Value(p))
		}

		if (i+1)%chunkSize == 0 || i == total-1 {
			progress := math.Round(float64(i+1) / float64(total) * 100.0)
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = s.saveStatus(ctx, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, userID, exportID, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		fail(fmt.Errorf("render xlsx: %w", err))
		return
	}

	fileName := fmt.Sprintf("payments_%s.xlsx", time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 95, "uploading")
	}

	savedName, err := s.storage.Save(ctx, fileName, buf.Bytes())
	if err != nil {
		fail(fmt.Errorf("save export: %w", err))
		return
	}

	url := s.storage.GetURL(savedName)
	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, userID, exportID, url, fileName)
	}
}

func (s *ExportService) GetExports(ctx context.Context, userID int64) ([]interface{}, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}
		var status ExportStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		if status.UserID == userID {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	var exports []interface{}
	for _, status := range statuses {
		exports = append(exports, exportMap(status))
	}
	return exports, nil
}

func (s *ExportService) GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, exportID)
	if err != nil {
		return nil, errors.New("export not found")
	}

	var status ExportStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("parse export status: %w", err)
	}
	if status.UserID != userID {
		return nil, errors.New("export not found")
	}

	return exportMap(status), nil
}

func exportMap(status ExportStatus) map[string]interface{} {
	return map[string]interface{}{
		"key":        status.Key,
		"type":       status.Type,
		"user_id":    status.UserID,
		"progress":   status.Progress,
		"file_url":   status.FileURL,
		"error":      status.Error,
		"filters":    status.Filters,
		"created_at": humanizeAgo(status.Created),
	}
}

func humanizeAgo(t time.Time) string {
	now := time.Now()
	if t.After(now) {
		return "just now"
	}

	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d %s ago", minutes, plural(minutes, "minute"))
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d %s ago", hours, plural(hours, "hour"))
	}
	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("%d %s ago", days, plural(days, "day"))
	}
	return t.Format("2006-01-02 15:04")
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

func buildFiltersMap(f repository.LedgerFilter, fields []string) map[string]interface{} {
	m := map[string]interface{}{}
	if f.LoanID != nil {
		m["loan_id"] = *f.LoanID
	} else {
		m["loan_id"] = nil
	}
	if f.ClientID != nil {
		m["client_id"] = *f.ClientID
	} else {
		m["client_id"] = nil
	}
	if f.PaidFromDate != nil {
		m["paid_from_date"] = f.PaidFromDate.Format("2006-01-02")
	} else {
		m["paid_from_date"] = nil
	}
	if f.PaidToDate != nil {
		m["paid_to_date"] = f.PaidToDate.Format("2006-01-02")
	} else {
		m["paid_to_date"] = nil
	}
	m["fields"] = fields
	return m
}
