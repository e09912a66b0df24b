package charts

import (
	"bytes"
	"errors"
	"testing"

	"expenso/internal/core"
)

var pngMagic = []byte("\x89PNG")

func TestTrendSeries(t *testing.T) {
	labels, income, expenses := TrendSeries([]core.MonthlyPoint{
		{Month: "Jan", Income: core.Money{Cents: 150000}, Expenses: core.Money{Cents: 2550}},
		{Month: "Feb", Income: core.Money{Cents: 0}, Expenses: core.Money{Cents: 99}},
	})
	if labels[1] != "Feb" || income[0] != 1500 || expenses[0] != 25.5 || expenses[1] != 0.99 {
		t.Fatalf("labels=%v income=%v expenses=%v", labels, income, expenses)
	}
}

func TestTrendRenders(t *testing.T) {
	g := NewGenerator()
	tests := map[string][]core.MonthlyPoint{
		"several months": {
			{Month: "Jan", Income: core.Money{Cents: 100000}, Expenses: core.Money{Cents: 50000}},
			{Month: "Feb", Income: core.Money{Cents: 120000}, Expenses: core.Money{Cents: 70000}},
			{Month: "Mar", Income: core.Money{Cents: 90000}, Expenses: core.Money{Cents: 95000}},
		},
		"single month": {{Month: "Jan", Income: core.Money{Cents: 100}}},
		"all zero":     {{Month: "Jan"}, {Month: "Feb"}},
	}
	for name, points := range tests {
		t.Run(name, func(t *testing.T) {
			for _, dark := range []bool{false, true} {
				img, err := g.Trend(points, dark)
				if err != nil {
					t.Fatalf("Trend(dark=%v): %v", dark, err)
				}
				if !bytes.HasPrefix(img, pngMagic) {
					t.Fatal("output is not a PNG")
				}
			}
		})
	}
}

func TestTrendWithoutData(t *testing.T) {
	if _, err := NewGenerator().Trend(nil, false); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v", err)
	}
}

func TestCategoriesRenders(t *testing.T) {
	img, err := NewGenerator().Categories([]core.CategoryAmount{
		{Name: "Food & Dining", Value: core.Money{Cents: 12000}},
		{Name: "Transportation", Value: core.Money{Cents: 4000}},
		{Name: "Refund", Value: core.Money{Cents: 0}},
	}, true)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatal("output is not a PNG")
	}
}

func TestCategoriesSkipsEmpty(t *testing.T) {
	_, err := NewGenerator().Categories([]core.CategoryAmount{{Name: "x"}}, false)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v", err)
	}
}
