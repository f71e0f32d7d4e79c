// Package export renders calls with their phases and resolutions into an
// Excel workbook for the administrative office. The workbook is built in
// memory and returned as a buffer for the HTTP layer to stream.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	dErrors "convoca/pkg/domain-errors"
)

// Options narrows what the workbook includes.
type Options struct {
	Status         *models.CallStatus
	AcademicYearID *string
	IncludeTrashed bool
}

// Service loads the data set and renders the workbook.
type Service struct {
	calls       store.CallStore
	phases      store.PhaseStore
	resolutions store.ResolutionStore
	logger      *slog.Logger
}

func New(calls store.CallStore, phases store.PhaseStore, resolutions store.ResolutionStore, logger *slog.Logger) *Service {
	return &Service{
		calls:       calls,
		phases:      phases,
		resolutions: resolutions,
		logger:      logger,
	}
}

type callData struct {
	call        *models.Call
	phases      []*models.Phase
	resolutions []*models.Resolution
}

// Workbook builds the export. Per-call descendants load concurrently;
// sheet assembly stays single-threaded because excelize files are not
// safe for concurrent writes.
func (s *Service) Workbook(ctx context.Context, opts Options) (*bytes.Buffer, string, error) {
	calls, err := s.calls.List(ctx, store.CallFilter{
		Status:         opts.Status,
		AcademicYearID: opts.AcademicYearID,
		IncludeTrashed: opts.IncludeTrashed,
	})
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to list calls")
	}

	scope := store.ScopeActive
	if opts.IncludeTrashed {
		scope = store.ScopeAll
	}

	data := make([]callData, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			phases, err := s.phases.ListByCall(gctx, call.ID, scope)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list phases")
			}
			resolutions, err := s.resolutions.ListByCall(gctx, call.ID, scope)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list resolutions")
			}
			data[i] = callData{call: call, phases: phases, resolutions: resolutions}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	buf, err := render(data)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to render workbook")
	}

	filename := fmt.Sprintf("calls-%s.xlsx", time.Now().Format("2006-01-02"))
	if s.logger != nil {
		s.logger.InfoContext(ctx, "workbook exported", "calls", len(calls), "filename", filename)
	}
	return buf, filename, nil
}

const (
	sheetCalls       = "Calls"
	sheetPhases      = "Phases"
	sheetResolutions = "Resolutions"
)

func render(data []callData) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), sheetCalls)
	if _, err := f.NewSheet(sheetPhases); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetResolutions); err != nil {
		return nil, err
	}

	if err := writeRow(f, sheetCalls, 1,
		"ID", "Slug", "Title", "Program", "Academic Year", "Type", "Modality",
		"Places", "Destinations", "Status", "Published", "Closed", "Trashed"); err != nil {
		return nil, err
	}
	if err := writeRow(f, sheetPhases, 1,
		"ID", "Call", "Type", "Name", "Order", "Current", "Start", "End", "Trashed"); err != nil {
		return nil, err
	}
	if err := writeRow(f, sheetResolutions, 1,
		"ID", "Call", "Phase", "Type", "Title", "Official Date", "Published", "Trashed"); err != nil {
		return nil, err
	}

	callRow, phaseRow, resolutionRow := 2, 2, 2
	for _, d := range data {
		c := d.call
		if err := writeRow(f, sheetCalls, callRow,
			c.ID.String(), c.Slug, c.Title, c.ProgramID, deref(c.AcademicYearID),
			string(c.Type), string(c.Modality), c.NumberOfPlaces,
			strings.Join(c.Destinations, ", "), string(c.Status),
			stamp(c.PublishedAt), stamp(c.ClosedAt), c.IsTrashed()); err != nil {
			return nil, err
		}
		callRow++

		for _, p := range d.phases {
			if err := writeRow(f, sheetPhases, phaseRow,
				p.ID.String(), c.Slug, string(p.Type), p.Name, p.Order,
				p.IsCurrent, stamp(p.StartDate), stamp(p.EndDate), p.IsTrashed()); err != nil {
				return nil, err
			}
			phaseRow++
		}
		for _, r := range d.resolutions {
			if err := writeRow(f, sheetResolutions, resolutionRow,
				r.ID.String(), c.Slug, r.PhaseID.String(), string(r.Type), r.Title,
				r.OfficialDate.Format("2006-01-02"), stamp(r.PublishedAt), r.IsTrashed()); err != nil {
				return nil, err
			}
			resolutionRow++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
