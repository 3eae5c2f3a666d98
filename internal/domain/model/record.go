package model

import "github.com/shopspring/decimal"

// HolderRecord is the full per-holder result written to the transaction log.
type HolderRecord struct {
	Address       string          `json:"address"`
	InitialAmount decimal.Decimal `json:"initialAmount"`
	MinimumValue  decimal.Decimal `json:"minimumValue"`
	AirdropAmount decimal.Decimal `json:"airdropAmount"`
	Transactions  Timeline        `json:"transactions"`
}

// Distribution holds the index-aligned account and amount sequences fed to
// a batch transfer. Amounts are integer strings in the token's smallest unit.
type Distribution struct {
	Accounts []string `json:"accounts"`
	Amounts  []string `json:"amounts"`
}

// Append adds one account/amount pair.
func (d *Distribution) Append(account, amount string) {
	d.Accounts = append(d.Accounts, account)
	d.Amounts = append(d.Amounts, amount)
}

// Len returns the number of pairs.
func (d Distribution) Len() int { return len(d.Accounts) }

// RunAggregate accumulates run-wide totals. It is owned by the orchestrator.
type RunAggregate struct {
	Holders       int             `json:"holders"`
	Eligible      int             `json:"eligible"`
	Skipped       int             `json:"skipped"`
	FetchFailures int             `json:"fetchFailures"`
	TotalInitial  decimal.Decimal `json:"totalInitial"`
	TotalHeld     decimal.Decimal `json:"totalHeld"`
	TotalAirdrop  decimal.Decimal `json:"totalAirdrop"`
}

// Add folds one processed holder into the totals.
func (a *RunAggregate) Add(r HolderRecord, eligible bool) {
	a.Holders++
	if eligible {
		a.Eligible++
	}
	a.TotalInitial = a.TotalInitial.Add(r.InitialAmount)
	a.TotalHeld = a.TotalHeld.Add(r.MinimumValue)
	a.TotalAirdrop = a.TotalAirdrop.Add(r.AirdropAmount)
}
