package state

import "expenso/internal/core"

// Action is a state transition request. Each slice reducer ignores actions it
// does not handle.
type Action interface {
	actionName() string
}

// Auth actions.
type (
	AuthPending     struct{}
	AuthSucceeded   struct{ Session core.AuthSession }
	AuthFailed      struct{ Message string }
	SessionRestored struct{ Session core.AuthSession }
	TokenRefreshed  struct{ Token string }
	ProfileUpdated  struct{ User core.User }
	LoggedOut       struct{}
	ErrorCleared    struct{}
)

// Transaction actions.
type (
	TransactionsPending struct{}
	TransactionsFailed  struct{}
	TransactionsLoaded  struct {
		Items      []core.Transaction
		Pagination core.Pagination
	}
	TransactionSaved   struct{ Transaction core.Transaction }
	TransactionDeleted struct{ ID string }
	DashboardLoaded    struct{ Data core.DashboardData }
	ReportLoaded       struct{ Report core.Report }
	FiltersSet         struct{ Partial core.Filters }
	FiltersCleared     struct{}
	SortToggled        struct{ Field string }
)

// UI actions.
type (
	ThemeToggled   struct{}
	ThemeSet       struct{ Theme core.Theme }
	SidebarToggled struct{}
	SidebarClosed  struct{}
	LoadingSet     struct{ Loading bool }
)

func (AuthPending) actionName() string { return "auth/pending" }
func (AuthSucceeded) actionName() string { return "auth/succeeded" }
func (AuthFailed) actionName() string { return "auth/failed" }
func (SessionRestored) actionName() string { return "auth/restored" }
func (TokenRefreshed) actionName() string { return "auth/tokenRefreshed" }
func (ProfileUpdated) actionName() string { return "auth/profileUpdated" }
func (LoggedOut) actionName() string { return "auth/logout" }
func (ErrorCleared) actionName() string { return "auth/clearError" }

func (TransactionsPending) actionName() string { return "transactions/pending" }
func (TransactionsFailed) actionName() string { return "transactions/failed" }
func (TransactionsLoaded) actionName() string { return "transactions/loaded" }
func (TransactionSaved) actionName() string { return "transactions/saved" }
func (TransactionDeleted) actionName() string { return "transactions/deleted" }
func (DashboardLoaded) actionName() string { return "transactions/dashboardLoaded" }
func (ReportLoaded) actionName() string { return "transactions/reportLoaded" }
func (FiltersSet) actionName() string { return "transactions/setFilters" }
func (FiltersCleared) actionName() string { return "transactions/clearFilters" }
func (SortToggled) actionName() string { return "transactions/toggleSort" }

func (ThemeToggled) actionName() string { return "ui/toggleTheme" }
func (ThemeSet) actionName() string { return "ui/setTheme" }
func (SidebarToggled) actionName() string { return "ui/toggleSidebar" }
func (SidebarClosed) actionName() string { return "ui/closeSidebar" }
func (LoadingSet) actionName() string { return "ui/setLoading" }

// ActionName is used for logging.
func ActionName(a Action) string {
	return a.actionName()
}
