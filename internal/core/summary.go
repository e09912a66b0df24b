package core

// MonthlyPoint is one entry of the dashboard trend series.
type MonthlyPoint struct {
	Month    string `json:"month"`
	Income   Money  `json:"income"`
	Expenses Money  `json:"expenses"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name  string `json:"name"`
	Value Money  `json:"value"`
}

// DashboardData is the server-computed summary, replaced wholesale on fetch.
type DashboardData struct {
	TotalIncome        Money            `json:"totalIncome"`
	TotalExpenses      Money            `json:"totalExpenses"`
	Balance            Money            `json:"balance"`
	RecentTransactions []Transaction    `json:"recentTransactions"`
	MonthlyData        []MonthlyPoint   `json:"monthlyData"`
	CategoryData       []CategoryAmount `json:"categoryData"`
}

// Normalize enforces Balance == TotalIncome - TotalExpenses and replaces nil
// slices with empty ones so templates can range without checks.
func (d DashboardData) Normalize() DashboardData {
	d.Balance = d.TotalIncome.Sub(d.TotalExpenses)
	if d.RecentTransactions == nil {
		d.RecentTransactions = []Transaction{}
	}
	if d.MonthlyData == nil {
		d.MonthlyData = []MonthlyPoint{}
	}
	if d.CategoryData == nil {
		d.CategoryData = []CategoryAmount{}
	}
	return d
}

// Share returns the category's percentage of total expenses, 0 when there are none.
func (d DashboardData) Share(c CategoryAmount) float64 {
	if d.TotalExpenses.Cents <= 0 {
		return 0
	}
	return float64(c.Value.Cents) / float64(d.TotalExpenses.Cents) * 100
}

// Report is the aggregate behind the reports page for one date range.
type Report struct {
	Range            string           `json:"range"`
	From             Date             `json:"dateFrom"`
	To               Date             `json:"dateTo"`
	TotalIncome      Money            `json:"totalIncome"`
	TotalExpenses    Money            `json:"totalExpenses"`
	Balance          Money            `json:"balance"`
	PreviousIncome   Money            `json:"previousIncome"`
	PreviousExpenses Money            `json:"previousExpenses"`
	Series           []MonthlyPoint   `json:"series"`
	CategoryData     []CategoryAmount `json:"categoryData"`
}

// Normalize applies the same balance rule as DashboardData.
func (r Report) Normalize() Report {
	r.Balance = r.TotalIncome.Sub(r.TotalExpenses)
	if r.Series == nil {
		r.Series = []MonthlyPoint{}
	}
	if r.CategoryData == nil {
		r.CategoryData = []CategoryAmount{}
	}
	return r
}

func (r Report) IncomeGrowth() float64 {
	return Growth(r.TotalIncome, r.PreviousIncome)
}

func (r Report) ExpenseGrowth() float64 {
	return Growth(r.TotalExpenses, r.PreviousExpenses)
}

// Growth is the percentage change from previous to current; 0 when previous is 0.
func Growth(current, previous Money) float64 {
	if previous.Cents == 0 {
		return 0
	}
	return float64(current.Cents-previous.Cents) / float64(previous.Cents) * 100
}
