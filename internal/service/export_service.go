package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/internal/models"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/export"
)

// Supported roster formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

var rosterHeaders = []string{"날짜", "시작", "종료", "직원", "포지션", "상태", "메모"}

type rosterSource interface {
	ListWithStaff(ctx context.Context, storeID string, start, end time.Time) ([]models.ShiftWithStaff, error)
}

type storeLookup interface {
	RequireManager(ctx context.Context, storeID, userID string) error
	GetStore(ctx context.Context, storeID string) (*models.Store, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Location *time.Location
	MaxRange time.Duration
}

// ExportFile is a rendered roster ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders store rosters in downloadable formats.
type ExportService struct {
	shifts    rosterSource
	stores    storeLookup
	renderers map[string]export.Renderer
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(shifts rosterSource, stores storeLookup, cfg ExportConfig, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = defaultLocation()
	}
	if cfg.MaxRange <= 0 {
		cfg.MaxRange = 93 * 24 * time.Hour
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter(""), export.NewXLSXExporter()}
	}
	byFormat := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		if r != nil {
			byFormat[r.Extension()] = r
		}
	}
	return &ExportService{shifts: shifts, stores: stores, renderers: byFormat, logger: logger, cfg: cfg}
}

// ExportRoster renders the store's shifts starting within [start, end]. Managers only.
func (s *ExportService) ExportRoster(ctx context.Context, userID, storeID string, start, end time.Time, format string) (*ExportFile, error) {
	if err := s.stores.RequireManager(ctx, storeID, userID); err != nil {
		return nil, err
	}

	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end must not be before start")
	}
	if end.Sub(start) > s.cfg.MaxRange {
		return nil, appErrors.Clone(appErrors.ErrValidation, "export range is too long")
	}

	store, err := s.stores.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	shifts, err := s.shifts.ListWithStaff(ctx, storeID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무표를 불러오지 못했습니다")
	}

	title := fmt.Sprintf("%s 근무표 %s ~ %s", store.Name, start.In(s.cfg.Location).Format("2006-01-02"), end.In(s.cfg.Location).Format("2006-01-02"))
	payload, err := renderer.Render(s.buildDataset(shifts), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "근무표 내보내기에 실패했습니다")
	}

	s.logger.Info("roster exported",
		zap.String("store_id", storeID),
		zap.String("format", renderer.Extension()),
		zap.Int("rows", len(shifts)),
	)

	return &ExportFile{
		Filename:    s.buildFilename(store.Name, start, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) buildDataset(shifts []models.ShiftWithStaff) export.Dataset {
	rows := make([]map[string]string, 0, len(shifts))
	for _, sh := range shifts {
		start := sh.StartTime.In(s.cfg.Location)
		end := sh.EndTime.In(s.cfg.Location)
		staff := "-"
		if sh.UserID != nil {
			staff = models.UnnamedProfile
			if sh.StaffName != nil && *sh.StaffName != "" {
				staff = *sh.StaffName
			}
		}
		rows = append(rows, map[string]string{
			"날짜":  start.Format("2006-01-02"),
			"시작":  start.Format("15:04"),
			"종료":  end.Format("15:04"),
			"직원":  staff,
			"포지션": deref(sh.Position),
			"상태":  string(sh.Status),
			"메모":  deref(sh.Notes),
		})
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}

func (s *ExportService) buildFilename(storeName string, start time.Time, ext string) string {
	month := start.In(s.cfg.Location).Format("200601")
	return fmt.Sprintf("roster_%s_%s.%s", sanitizeFilename(storeName), month, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}
