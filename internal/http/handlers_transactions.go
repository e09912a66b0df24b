package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"sync/atomic"
	"unicode"

	"expenso/internal/apiclient"
	"expenso/internal/catalog"
	"expenso/internal/core"
	"expenso/internal/log"
	"expenso/internal/state"
)

type transactionsPage struct {
	Items      []core.Transaction
	Pagination core.Pagination
	Filters    core.Filters
	Sort       core.Sort
	Categories []catalog.Category
	Error      string
}

func transactionsPageFrom(st state.State, cat *catalog.Catalog) transactionsPage {
	return transactionsPage{
		Items:      st.Transactions.Items,
		Pagination: st.Transactions.Pagination,
		Filters:    st.Transactions.Filters,
		Sort:       st.Transactions.Sort,
		Categories: cat.All(),
	}
}

// transactionForm backs both the create and the edit page.
type transactionForm struct {
	ID         string
	Input      core.TransactionInput
	Errors     core.ValidationErrors
	Categories []catalog.Category
	Error      string
}

func (f transactionForm) Editing() bool { return f.ID != "" }

func (f transactionForm) Action() string {
	if f.Editing() {
		return "/transactions/" + f.ID
	}
	return "/transactions"
}

func newTransactionForm(cat *catalog.Catalog, id string, in core.TransactionInput) transactionForm {
	t, err := core.ParseTransactionType(in.Type)
	if err != nil {
		t = core.Expense
		in.Type = string(core.Expense)
	}
	return transactionForm{ID: id, Input: in, Categories: cat.ForType(t)}
}

// handleTransactions applies filter, sort and paging parameters to the
// session and reloads the list. htmx requests get only the table.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	q := r.URL.Query()
	switch {
	case q.Get("clear") == "1":
		sess.ClearFilters()
	case q.Get("filter") == "1":
		sess.ClearFilters()
		sess.SetFilters(core.FiltersFromQuery(q))
	}
	if field := q.Get("sort"); field != "" {
		sess.ToggleSort(field)
	}

	lq := core.ListQueryFromValues(q)
	page := transactionsPage{}
	if err := sess.FetchTransactions(r.Context(), lq.Page, lq.Limit); err != nil {
		if authLost(w, r, err) {
			return
		}
		requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), "Failed to load transactions", log.FieldError, err)
		page.Error = apiclient.UserMessage(err)
	}
	cat := sess.Catalog(r.Context())
	errMsg := page.Error
	page = transactionsPageFrom(sess.State(), cat)
	page.Error = errMsg

	v := s.newView(r, sess, "Transactions", page)
	if isHTMX(r) {
		s.renderPartial(w, r, nil, "tx_table", v)
		return
	}
	s.render(w, r, http.StatusOK, "transactions", v)
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	in := core.TransactionInput{
		Type: string(core.Expense),
		Date: core.DateOf(timeNow()).String(),
	}
	if t, err := core.ParseTransactionType(r.URL.Query().Get("type")); err == nil {
		in.Type = string(t)
	}
	form := newTransactionForm(sess.Catalog(r.Context()), "", in)
	s.render(w, r, http.StatusOK, "transaction_form", s.newView(r, sess, "Add Transaction", form))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in := TransactionInputFrom(p)
	tx, err := sess.CreateTransaction(r.Context(), in)
	if err != nil {
		s.transactionFailed(w, r, sess, "", in, "Failed to add transaction", err)
		return
	}

	atomic.AddInt64(&s.metrics.created, 1)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogTransactionActivity(r.Context(),
		log.OpCreate, tx.ID, string(tx.Type), tx.Category, tx.Amount.Cents)

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerTransactionCreated(tx.ID).
			TriggerDashboardRefresh().
			Redirect("/transactions?notice=created").
			Write(w)
		return
	}
	http.Redirect(w, r, "/transactions?notice=created", http.StatusSeeOther)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}
	tx, err := sess.FetchTransaction(r.Context(), id)
	if err != nil {
		if authLost(w, r, err) {
			return
		}
		requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), "Failed to load transaction",
			log.FieldTransactionID, id, log.FieldError, err)
		redirect(w, r, "/transactions?notice=load-failed")
		return
	}
	form := newTransactionForm(sess.Catalog(r.Context()), id, tx.Input())
	s.render(w, r, http.StatusOK, "transaction_form", s.newView(r, sess, "Edit Transaction", form))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in := TransactionInputFrom(p)
	tx, err := sess.UpdateTransaction(r.Context(), id, in)
	if err != nil {
		s.transactionFailed(w, r, sess, id, in, "Failed to update transaction", err)
		return
	}

	atomic.AddInt64(&s.metrics.updated, 1)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogTransactionActivity(r.Context(),
		log.OpUpdate, tx.ID, string(tx.Type), tx.Category, tx.Amount.Cents)

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerTransactionUpdated(tx.ID).
			TriggerDashboardRefresh().
			Redirect("/transactions?notice=updated").
			Write(w)
		return
	}
	http.Redirect(w, r, "/transactions?notice=updated", http.StatusSeeOther)
}

// transactionFailed re-renders the form with inline errors on validation
// failure, or with a notification when the backend refused the request.
func (s *Server) transactionFailed(w http.ResponseWriter, r *http.Request, sess *state.Session, id string, in core.TransactionInput, fallback string, err error) {
	if authLost(w, r, err) {
		return
	}
	form := newTransactionForm(sess.Catalog(r.Context()), id, in)
	title := "Add Transaction"
	if id != "" {
		title = "Edit Transaction"
	}

	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		form.Errors = verrs
		s.show(w, r, http.StatusUnprocessableEntity, "transaction_form", "tx_form", s.newView(r, sess, title, form), nil)
		return
	}

	status := http.StatusBadGateway
	if errors.Is(err, core.ErrNotFound) {
		status = http.StatusNotFound
	}
	requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), fallback,
		log.FieldTransactionID, id, log.FieldError, err)
	form.Error = fallback + ": " + apiclient.UserMessage(err)
	note := &notification{Type: NotificationError, Message: form.Error}
	s.show(w, r, status, "transaction_form", "tx_form", s.newView(r, sess, title, form), note)
}

// handleDeleteTransaction removes the row only after the backend confirms.
// htmx requests get the refreshed table back.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}
	if err := sess.DeleteTransaction(r.Context(), id); err != nil {
		if authLost(w, r, err) {
			return
		}
		requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), "Failed to delete transaction",
			log.FieldTransactionID, id, log.FieldError, err)
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("Transaction not found").Write(w)
			return
		}
		BadGatewayError("Failed to delete transaction: " + apiclient.UserMessage(err)).Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.deleted, 1)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogTransactionActivity(r.Context(),
		log.OpDelete, id, "", "", 0)

	if !isHTMX(r) {
		http.Redirect(w, r, "/transactions?notice=deleted", http.StatusSeeOther)
		return
	}
	page := transactionsPageFrom(sess.State(), sess.Catalog(r.Context()))
	b := NewHTMXResponse().
		TriggerTransactionDeleted(id).
		TriggerDashboardRefresh().
		TriggerSuccessNotification("Transaction deleted successfully")
	s.renderPartial(w, r, b, "tx_table", s.newView(r, sess, "Transactions", page))
}

type categoryOptions struct {
	Categories []catalog.Category
	Selected   string
}

// handleCategoryOptions re-renders the category select when the type changes,
// keeping the chosen category only if it belongs to the new type.
func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	q := r.URL.Query()
	t, err := core.ParseTransactionType(q.Get("type"))
	if err != nil {
		t = core.Expense
	}
	cat := sess.Catalog(r.Context())
	s.renderPartial(w, r, nil, "category_options", categoryOptions{
		Categories: cat.ForType(t),
		Selected:   cat.SwitchType(t, q.Get("category")),
	})
}

// handleExport streams the backend CSV through without buffering it.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	dl, err := sess.Export(r.Context())
	if err != nil {
		if authLost(w, r, err) {
			return
		}
		requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), "Export failed", log.FieldError, err)
		redirect(w, r, "/transactions?notice=export-failed")
		return
	}
	defer dl.Close()

	ct := dl.ContentType
	if ct == "" {
		ct = "text/csv; charset=utf-8"
	}
	name := dl.Filename
	if name == "" {
		name = "transactions.csv"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, dl.Body)
	if err != nil {
		requestLogger(r, log.ComponentTransactions).WarnContext(r.Context(), "Export stream interrupted",
			"bytes", n, log.FieldError, err)
		return
	}
	atomic.AddInt64(&s.metrics.exports, 1)
	requestLogger(r, log.ComponentTransactions).InfoContext(r.Context(), "Export streamed",
		log.FieldOperation, log.OpExport, "bytes", n)
}

const maxIDLen = 128

// transactionID reads the path id and answers 400 for anything that could
// not be a backend identifier.
func transactionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	valid := id != "" && len(id) <= maxIDLen
	for _, c := range id {
		if unicode.IsControl(c) || unicode.IsSpace(c) {
			valid = false
			break
		}
	}
	if !valid {
		BadRequestError("Invalid transaction id").Write(w)
		return "", false
	}
	return id, true
}
