package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
	"github.com/feral-file/prize-indexer/internal/logger"
)

// FILE_TIME_FORMAT names report files after their generation time
const FILE_TIME_FORMAT = "20060102150405"

//go:embed templates/report.html.tmpl
var templates embed.FS

var funcs = template.FuncMap{
	"datetime": func(t time.Time) string {
		return t.Format("2006-01-02T15:04:05")
	},
}

// Sink defines the interface for rendering a report to durable output
//
//go:generate mockgen -source=report.go -destination=../mocks/report_sink.go -package=mocks -mock_names=Sink=MockReportSink
type Sink interface {
	// Write renders the report and returns the path it was written to
	Write(ctx context.Context, report *domain.Report) (string, error)
}

type htmlSink struct {
	outputDir string
	tmpl      *template.Template
	fs        adapter.FileSystem
}

// NewHTMLSink creates a sink rendering HTML into outputDir.
// An empty templatePath selects the built-in template.
func NewHTMLSink(outputDir, templatePath string, fs adapter.FileSystem) (Sink, error) {
	var (
		tmpl *template.Template
		err  error
	)

	if templatePath == "" {
		tmpl, err = template.New("report.html.tmpl").Funcs(funcs).ParseFS(templates, "templates/report.html.tmpl")
	} else {
		var text []byte
		text, err = fs.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read report template %s: %w", templatePath, err)
		}
		tmpl, err = template.New(filepath.Base(templatePath)).Funcs(funcs).Parse(string(text))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}

	return &htmlSink{outputDir: outputDir, tmpl: tmpl, fs: fs}, nil
}

func (s *htmlSink) Write(ctx context.Context, report *domain.Report) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	path := filepath.Join(s.outputDir, report.GeneratedAt.Format(FILE_TIME_FORMAT)+".html")
	if err := s.fs.WriteFile(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}

	logger.InfoCtx(ctx, "Saved report", zap.String("path", path), zap.Int("pools", len(report.Pools)))
	return path, nil
}
