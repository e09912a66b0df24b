package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"expenso/internal/catalog"
	"expenso/internal/core"
	"expenso/internal/log"
	"expenso/internal/state"
)

type navItem struct {
	Name string
	Href string
	Icon string
}

var navigation = []navItem{
	{"Dashboard", "/dashboard", "🏠"},
	{"Transactions", "/transactions", "💳"},
	{"Add Transaction", "/transactions/new", "➕"},
	{"Reports", "/reports", "📊"},
	{"Profile", "/profile", "👤"},
}

// notification is shown once on the rendered page.
type notification struct {
	Type    NotificationType
	Message string
}

// view is the data every page template receives; Page holds the page-specific part.
type view struct {
	Title         string
	Path          string
	ThemeClass    string
	Theme         core.Theme
	SidebarOpen   bool
	Authenticated bool
	User          core.User
	Nav           []navItem
	Catalog       *catalog.Catalog
	Notice        *notification
	Page          any
}

// templates holds one parsed set per page, each sharing the layout and partials.
type templates struct {
	pages    map[string]*template.Template
	partials *template.Template
}

var templateFuncs = template.FuncMap{
	"money":     formatMoney,
	"percent":   formatPercent,
	"date":      formatDate,
	"savings":   savingsRate,
	"typeClass": func(t core.TransactionType) string { return strings.ToLower(string(t)) },
	"sign": func(t core.TransactionType) string {
		if t == core.Income {
			return "+"
		}
		return "-"
	},
	"isActive": func(current, href string) bool {
		return current == href || (href == "/transactions" && strings.HasSuffix(current, "/edit"))
	},
	"sortMark": func(s core.Sort, field string) string {
		if s.By != field {
			return ""
		}
		if s.Order == core.SortAsc {
			return "▲"
		}
		return "▼"
	},
	"pageURL":  pageURL,
	"add":      func(a, b int) int { return a + b },
	"sub":      func(a, b int) int { return a - b },
	"color":    catalog.Color,
	"ranges":   func() []catalog.DateRange { return catalog.DateRanges },
	"types":    func() []core.TransactionType { return []core.TransactionType{core.Income, core.Expense} },
	"share":    func(d core.DashboardData, c core.CategoryAmount) float64 { return d.Share(c) },
	"errorFor": func(errs core.ValidationErrors, field string) string { return errs[field] },
	"ratio": func(part, total core.Money) float64 {
		if total.Cents <= 0 {
			return 0
		}
		return float64(part.Cents) / float64(total.Cents) * 100
	},
	"options": func(cats []catalog.Category, selected string) categoryOptions {
		return categoryOptions{Categories: cats, Selected: selected}
	},
}

// pageURL builds a transactions list link keeping the page size.
func pageURL(page, limit int) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	return "/transactions?" + v.Encode()
}

func parseTemplates(fsys fs.FS) (*templates, error) {
	base, err := template.New("base").Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	t := &templates{pages: map[string]*template.Template{}, partials: base}
	for _, f := range files {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(fsys, f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		t.pages[strings.TrimSuffix(path.Base(f), ".html")] = clone
	}
	return t, nil
}

// newView fills the fields the layout needs from the session snapshot. The
// root theme class is derived here and nowhere else.
func (s *Server) newView(r *http.Request, sess *state.Session, title string, page any) view {
	st := sess.State()
	v := view{
		Title:         title,
		Path:          r.URL.Path,
		ThemeClass:    state.ThemeClass(st.UI),
		Theme:         st.UI.Theme,
		SidebarOpen:   st.UI.SidebarOpen,
		Authenticated: st.Auth.IsAuthenticated,
		User:          st.Auth.User,
		Nav:           navigation,
		Catalog:       sess.Catalog(r.Context()),
		Page:          page,
	}
	if n, ok := notices[r.URL.Query().Get("notice")]; ok {
		v.Notice = &n
	}
	return v
}

// notices are the messages that survive a redirect, keyed by the notice
// query value. Only these fixed texts can be shown this way.
var notices = map[string]notification{
	"logged-out":     {NotificationSuccess, "Logged out successfully"},
	"created":        {NotificationSuccess, "Transaction added successfully!"},
	"updated":        {NotificationSuccess, "Transaction updated successfully!"},
	"deleted":        {NotificationSuccess, "Transaction deleted successfully"},
	"password-reset": {NotificationSuccess, "Your password has been reset. Please log in."},
	"load-failed":    {NotificationError, "Failed to load transaction"},
	"export-failed":  {NotificationError, "Export failed. Please try again."},
}

// show answers a form submission: htmx requests get the partial and an
// HX-Trigger notification, plain posts get the whole page with the notice.
func (s *Server) show(w http.ResponseWriter, r *http.Request, status int, page, partial string, v view, note *notification) {
	if isHTMX(r) && partial != "" {
		b := NewHTMXResponse().Status(status)
		if note != nil {
			b.TriggerNotification(note.Type, note.Message, 4000)
		}
		s.renderPartial(w, r, b, partial, v)
		return
	}
	if note != nil {
		v.Notice = note
	}
	s.render(w, r, status, page, v)
}

// render executes a full page. Output is buffered so a template error never
// leaves a half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, v view) {
	t, ok := s.templates.pages[page]
	if !ok {
		s.templateError(w, r, page, fmt.Errorf("unknown page %q", page))
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		s.templateError(w, r, page, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial executes one shared partial, for htmx swaps.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.partials.ExecuteTemplate(&buf, name, data); err != nil {
		s.templateError(w, r, name, err)
		return
	}
	if b == nil {
		b = NewHTMXResponse()
	}
	b.BodyHTML(buf.String()).Write(w)
}

func (s *Server) templateError(w http.ResponseWriter, r *http.Request, name string, err error) {
	requestLogger(r, log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
		"template", name, log.FieldError, err)
	InternalServerError("Something went wrong while rendering the page").Write(w)
}
