package mocks

//go:generate mockgen -destination=./mock_market.go -package=mocks github.com/quantfold/papertrade/internal/market QuoteSource
//go:generate mockgen -destination=./mock_advisor.go -package=mocks github.com/quantfold/papertrade/internal/advisor Advisor
