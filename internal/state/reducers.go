package state

import "expenso/internal/core"

func reduceAuth(s AuthState, a Action) AuthState {
	switch a := a.(type) {
	case AuthPending:
		s.Loading = true
		s.Error = ""
	case AuthSucceeded:
		return AuthState{User: a.Session.User, Token: a.Session.Token, IsAuthenticated: a.Session.Active()}
	case SessionRestored:
		return AuthState{User: a.Session.User, Token: a.Session.Token, IsAuthenticated: a.Session.Active()}
	case AuthFailed:
		s.Loading = false
		s.Error = a.Message
		s.IsAuthenticated = false
		s.Token = ""
		s.User = core.User{}
	case TokenRefreshed:
		if s.IsAuthenticated && a.Token != "" {
			s.Token = a.Token
		}
	case ProfileUpdated:
		if s.IsAuthenticated {
			s.User = a.User
		}
	case LoggedOut:
		return AuthState{}
	case ErrorCleared:
		s.Error = ""
	}
	return s
}

func reduceTransactions(s TransactionState, a Action) TransactionState {
	switch a := a.(type) {
	case TransactionsPending:
		s.Loading = true
	case TransactionsFailed:
		s.Loading = false
	case TransactionsLoaded:
		s.Loading = false
		s.Items = append([]core.Transaction{}, a.Items...)
		s.Pagination = a.Pagination
	case TransactionSaved:
		s.Loading = false
	case TransactionDeleted:
		s.Loading = false
		if items, removed := core.RemoveTransaction(s.Items, a.ID); removed {
			s.Items = items
			s.Pagination = s.Pagination.Decrement()
		}
	case DashboardLoaded:
		s.Loading = false
		s.Dashboard = a.Data.Normalize()
	case ReportLoaded:
		s.Loading = false
		s.Report = a.Report.Normalize()
	case FiltersSet:
		s.Filters = s.Filters.Merge(a.Partial)
	case FiltersCleared:
		s.Filters = core.Filters{}
	case SortToggled:
		s.Sort = s.Sort.Toggle(a.Field)
	case LoggedOut:
		// Another user may log in on the same browser session.
		return Initial().Transactions
	}
	return s
}

func reduceUI(s UIState, a Action) UIState {
	switch a := a.(type) {
	case ThemeToggled:
		s.Theme = s.Theme.Toggle()
	case ThemeSet:
		s.Theme = core.ParseTheme(string(a.Theme))
	case SidebarToggled:
		s.SidebarOpen = !s.SidebarOpen
	case SidebarClosed:
		s.SidebarOpen = false
	case LoadingSet:
		s.Loading = a.Loading
	}
	return s
}

// ThemeClass is the single place where theme state becomes the root
// presentation class. The layout template calls it once per render.
func ThemeClass(ui UIState) string {
	if ui.Theme == core.ThemeDark {
		return "dark"
	}
	return ""
}
