/*
balance.go - Balance aggregation

PURPOSE:
  A party's balance is the sum of every posting against it, whether
  derived from an order or entered by hand. It is never stored.

  +balance  receivable (party owes the business)
  -balance  payable    (business owes the party)

STATEMENT:
  A statement lists a party's postings oldest first with the running
  balance after each one, which is what account views render.
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PURE AGGREGATION
// =============================================================================

// BalanceOf sums the postings that belong to party.
func BalanceOf(postings []Posting, party PartyID) decimal.Decimal {
	total := decimal.Zero
	for _, p := range postings {
		if p.PartyID == party {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// SumByParty groups drafts by party. Used to check net-to-zero on an order.
func SumByParty(drafts []PostingDraft) map[PartyID]decimal.Decimal {
	sums := make(map[PartyID]decimal.Decimal)
	for _, d := range drafts {
		sums[d.PartyID] = sums[d.PartyID].Add(d.Amount)
	}
	return sums
}

// =============================================================================
// STATEMENT
// =============================================================================

type StatementLine struct {
	Posting Posting
	Running decimal.Decimal
}

type Statement struct {
	Party   Party
	Lines   []StatementLine
	Balance decimal.Decimal
}

// BuildStatement orders the postings chronologically and accumulates.
func BuildStatement(party Party, postings []Posting) Statement {
	sorted := make([]Posting, len(postings))
	copy(sorted, postings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	st := Statement{Party: party, Balance: decimal.Zero, Lines: make([]StatementLine, 0, len(sorted))}
	for _, p := range sorted {
		if p.PartyID != party.ID {
			continue
		}
		st.Balance = st.Balance.Add(p.Amount)
		st.Lines = append(st.Lines, StatementLine{Posting: p, Running: st.Balance})
	}
	return st
}

// =============================================================================
// DASHBOARD TOTALS
// =============================================================================

type PartyBalance struct {
	Party   Party
	Balance decimal.Decimal
}

type BalanceSummary struct {
	Parties    []PartyBalance
	Receivable decimal.Decimal // sum of positive balances
	Payable    decimal.Decimal // sum of negative balances, as a negative number
}

// Summarize computes every party's balance in one pass over the postings.
// Products are skipped since they never hold postings.
func Summarize(parties []Party, postings []Posting) BalanceSummary {
	byParty := make(map[PartyID]decimal.Decimal, len(parties))
	for _, p := range postings {
		byParty[p.PartyID] = byParty[p.PartyID].Add(p.Amount)
	}

	sum := BalanceSummary{Receivable: decimal.Zero, Payable: decimal.Zero}
	for _, party := range parties {
		if !party.Type.CanHoldPostings() {
			continue
		}
		bal := byParty[party.ID]
		sum.Parties = append(sum.Parties, PartyBalance{Party: party, Balance: bal})
		switch {
		case bal.IsPositive():
			sum.Receivable = sum.Receivable.Add(bal)
		case bal.IsNegative():
			sum.Payable = sum.Payable.Add(bal)
		}
	}
	return sum
}
