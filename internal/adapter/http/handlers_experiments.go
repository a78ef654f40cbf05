package adapthttp

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"github.com/MikhalGarbuz/analyze-your-life/internal/app"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// maxImportBytes bounds the size of an uploaded CSV file.
const maxImportBytes = 5 << 20

func (s *Server) handleExperimentsList(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Experiments.List(r.Context(), userFromContext(r).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Experiment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleExperimentGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	detail, err := s.svc.Experiments.Get(r.Context(), userFromContext(r).ID, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleExperimentEntries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := s.svc.Experiments.Entries(r.Context(), userFromContext(r).ID, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.DailyEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (s *Server) handleExperimentSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	days := intQuery(r, "days", 90)

	points, err := s.svc.Charts.GetDaily(r.Context(), userFromContext(r).ID, id, days)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days":  len(points),
		"today": domain.LocalDay(time.Now()),
		"items": points,
	})
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := s.svc.Analysis.Correlate(r.Context(), userFromContext(r).ID, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeReport(w, r, report.Markdown(), report.Chart, report)
}

func (s *Server) handleRegression(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target, err := pathID(r, "target")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := s.svc.Analysis.Regress(r.Context(), userFromContext(r).ID, id, target)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeReport(w, r, report.Result.Markdown(), report.Chart, report)
}

// writeReport answers in the representation named by ?format: json
// (default), markdown, html or png.
func writeReport(w http.ResponseWriter, r *http.Request, md string, chart []byte, v any) {
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, v)
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(md))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(renderHTML(md))
	case "png":
		if len(chart) == 0 {
			http.Error(w, "no chart", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(chart)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown format %q", r.URL.Query().Get("format")))
	}
}

func renderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	return markdown.ToHTML([]byte(md), p, nil)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	name, data, err := s.svc.Export.Export(r.Context(), userFromContext(r).ID, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

// handleImport creates an experiment from a CSV request body. The name,
// goals (comma separated) and start date come from the query string.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := app.ImportOptions{Start: q.Get("start")}
	for _, g := range strings.Split(q.Get("goals"), ",") {
		if g = strings.TrimSpace(g); g != "" {
			opts.Goals = append(opts.Goals, g)
		}
	}

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	res, err := s.svc.Import.Import(r.Context(), userFromContext(r).ID, q.Get("name"), body, opts)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
