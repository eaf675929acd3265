package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/home-library/bookshelf/internal/models"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMIMEType = "application/vnd.google-apps.spreadsheet"

var scopes = []string{
	sheets.SpreadsheetsScope,
	drive.DriveScope,
}

// Config selects the spreadsheet and worksheet rows are appended to.
// SpreadsheetID wins over SpreadsheetName when both are set.
type Config struct {
	CredentialsFile string
	SpreadsheetName string
	SpreadsheetID   string
	Worksheet       string
}

// Mirror appends book rows to a single worksheet
type Mirror struct {
	service       *sheets.Service
	spreadsheetID string
	worksheet     string
}

// New authorizes with the service-account key file, resolves the spreadsheet
// and checks the worksheet exists. Extra client options are applied after the
// credentials.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Mirror, error) {
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(data), option.WithScopes(scopes...))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	spreadsheetID := cfg.SpreadsheetID
	if spreadsheetID == "" {
		driveService, err := drive.NewService(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create drive client: %w", err)
		}
		spreadsheetID, err = findSpreadsheet(ctx, driveService, cfg.SpreadsheetName)
		if err != nil {
			return nil, err
		}
	}

	m := &Mirror{
		service:       service,
		spreadsheetID: spreadsheetID,
		worksheet:     cfg.Worksheet,
	}
	if err := m.checkWorksheet(ctx); err != nil {
		return nil, err
	}

	slog.Info("Spreadsheet mirror ready", "spreadsheet_id", spreadsheetID, "worksheet", cfg.Worksheet)
	return m, nil
}

func findSpreadsheet(ctx context.Context, service *drive.Service, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(name), spreadsheetMIMEType)

	list, err := service.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(10).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up spreadsheet %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found", name)
	}
	if len(list.Files) > 1 {
		slog.Warn("Multiple spreadsheets share a name, using the first", "name", name, "count", len(list.Files))
	}
	return list.Files[0].Id, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func (m *Mirror) checkWorksheet(ctx context.Context) error {
	ss, err := m.service.Spreadsheets.Get(m.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet %s: %w", m.spreadsheetID, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == m.worksheet {
			return nil
		}
	}
	return fmt.Errorf("worksheet %q not found in spreadsheet %s", m.worksheet, m.spreadsheetID)
}

// Append adds one row after the last row of the worksheet
func (m *Mirror) Append(ctx context.Context, row models.SheetRow) error {
	vr := &sheets.ValueRange{
		Values: [][]interface{}{row.Values()},
	}

	_, err := m.service.Spreadsheets.Values.Append(m.spreadsheetID, a1Range(m.worksheet), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to %s: %w", m.worksheet, err)
	}
	return nil
}

// a1Range quotes the worksheet name so names with spaces still resolve
func a1Range(worksheet string) string {
	return "'" + strings.ReplaceAll(worksheet, "'", "''") + "'"
}
