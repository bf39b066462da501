package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/fault"
)

// RegisterExportService renders the annual permit register as an .xlsx
// workbook: one row per issued permit, tariff lines flattened
type RegisterExportService interface {
	ExportYear(ctx context.Context, year int) ([]byte, error)
}

type registerExportServiceImpl struct {
	permits port.PermitRepository
	logger  Logger
}

// NewRegisterExportService creates a new RegisterExportService
func NewRegisterExportService(permits port.PermitRepository, logger Logger) RegisterExportService {
	return &registerExportServiceImpl{permits: permits, logger: logger}
}

var registerHeaders = []string{"Number", "Emitted", "Type", "Request", "Signer", "Tariff codes"}

// ExportYear builds the register workbook for one calendar year
func (s *registerExportServiceImpl) ExportYear(ctx context.Context, year int) ([]byte, error) {
	permits, err := s.permits.ListByYear(ctx, year)
	if err != nil {
		return nil, fault.Storage(err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, fmt.Sprintf("Permits %d", year)); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	sheet = fmt.Sprintf("Permits %d", year)

	for col, h := range registerHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, p := range permits {
		codes := ""
		for i, it := range p.Items {
			if i > 0 {
				codes += ", "
			}
			codes += it.TariffCode
		}

		values := []interface{}{
			p.Number,
			p.EmittedAt.Format("2006-01-02"),
			p.PermitType,
			p.RequestID,
			p.SignerName,
			codes,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	s.logger.Info("Permit register exported", "year", year, "permits", len(permits))
	return buf.Bytes(), nil
}
