package http

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"expenso/internal/apiclient"
	"expenso/internal/catalog"
	"expenso/internal/charts"
	"expenso/internal/core"
	"expenso/internal/log"
	"expenso/internal/middleware/security"
	"expenso/internal/state"
)

type dashboardPage struct {
	Data  core.DashboardData
	Error string
}

// handleDashboard loads the summary and the category catalog in parallel;
// the catalog is needed to label recent transactions.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return sess.FetchDashboardData(ctx)
	})
	g.Go(func() error {
		sess.Catalog(ctx)
		return nil
	})

	page := dashboardPage{}
	if err := g.Wait(); err != nil {
		if authLost(w, r, err) {
			return
		}
		requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), "Failed to load dashboard", log.FieldError, err)
		page.Error = "Failed to load dashboard data: " + apiclient.UserMessage(err)
	}
	page.Data = sess.State().Transactions.Dashboard
	s.render(w, r, http.StatusOK, "dashboard", s.newView(r, sess, "Dashboard", page))
}

type reportsPage struct {
	Report core.Report
	Range  catalog.DateRange
	Error  string
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	rng := catalog.ParseDateRange(r.URL.Query().Get("range"))
	page := reportsPage{Range: rng}
	if err := sess.FetchReports(r.Context(), rng); err != nil {
		if authLost(w, r, err) {
			return
		}
		requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), "Failed to load report",
			"range", string(rng), log.FieldError, err)
		page.Error = "Failed to load report: " + apiclient.UserMessage(err)
	} else {
		page.Report = sess.State().Transactions.Report
	}
	s.render(w, r, http.StatusOK, "reports", s.newView(r, sess, "Reports", page))
}

// chartData picks the series behind a chart. Dashboard charts reload the
// summary when this process has not fetched it yet, e.g. after a restart.
func chartData(ctx context.Context, sess *state.Session, source string) ([]core.MonthlyPoint, []core.CategoryAmount, error) {
	st := sess.State()
	if source == "reports" {
		return st.Transactions.Report.Series, st.Transactions.Report.CategoryData, nil
	}
	d := st.Transactions.Dashboard
	if len(d.MonthlyData) == 0 && len(d.CategoryData) == 0 {
		if err := sess.FetchDashboardData(ctx); err != nil {
			return nil, nil, err
		}
		d = sess.State().Transactions.Dashboard
	}
	return d.MonthlyData, d.CategoryData, nil
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	s.writeChart(w, r, sess, "trend", func(points []core.MonthlyPoint, _ []core.CategoryAmount, dark bool) ([]byte, error) {
		return s.charts.Trend(points, dark)
	})
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	s.writeChart(w, r, sess, "categories", func(_ []core.MonthlyPoint, items []core.CategoryAmount, dark bool) ([]byte, error) {
		return s.charts.Categories(items, dark)
	})
}

type drawFunc func(points []core.MonthlyPoint, items []core.CategoryAmount, dark bool) ([]byte, error)

// writeChart answers 204 when there is nothing to plot so the page can hide
// the image. Charts follow the session theme and are never cached.
func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, sess *state.Session, name string, draw drawFunc) {
	if s.charts == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	points, items, err := chartData(r.Context(), sess, r.URL.Query().Get("source"))
	if err != nil {
		s.opFailed(w, r, "chart_"+name, "Failed to load chart data", err)
		return
	}

	dark := sess.State().UI.Theme == core.ThemeDark
	png, err := draw(points, items, dark)
	switch {
	case errors.Is(err, charts.ErrNoData):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		requestLogger(r, log.ComponentCharts).ErrorContext(r.Context(), "Chart rendering failed",
			"chart", name, log.FieldError, err)
		InternalServerError("Failed to draw chart").Write(w)
		return
	}

	security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	})).ServeHTTP(w, r)
}
