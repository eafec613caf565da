package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Pure payment-allocation math, shared by the payment service and the
// reconciliation job. Nothing in this file touches the database.

// paymentOrdering sorts payments of one order into allocation order:
// ascending pay_date, ties broken by the per-order sequence number.
func paymentOrdering(payments []Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].PayDate != payments[j].PayDate {
			return payments[i].PayDate < payments[j].PayDate
		}
		return payments[i].SeqNo < payments[j].SeqNo
	})
}

// recomputeRemains walks the payments of one order in allocation order and
// rewrites each Remain as the balance left after that payment and every
// earlier one. Remains are floored at zero; the slice is sorted in place.
func recomputeRemains(orderTotal decimal.Decimal, payments []Payment) {
	paymentOrdering(payments)
	running := decimal.Zero
	for i := range payments {
		running = running.Add(payments[i].Deposit)
		remain := orderTotal.Sub(running)
		if remain.IsNegative() {
			remain = decimal.Zero
		}
		payments[i].Remain = remain
	}
}

// trimAction is one step of an overpayment repair plan.
type trimAction struct {
	PaymentID  int
	Delete     bool            // remove the payment entirely
	NewDeposit decimal.Decimal // when !Delete, the shrunk deposit
}

// planOverpaymentTrim computes how to bring an overpaid order back under its
// total. Payments are consumed newest-first (reverse allocation order): each
// payment whose full deposit fits in the remaining excess is deleted, and the
// first that does not is shrunk by what is left. Returns nil when the order
// is not overpaid.
func planOverpaymentTrim(orderTotal decimal.Decimal, payments []Payment) []trimAction {
	paymentOrdering(payments)
	totalPaid := decimal.Zero
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.Deposit)
	}
	excess := totalPaid.Sub(orderTotal)
	if !excess.IsPositive() {
		return nil
	}
	var plan []trimAction
	for i := len(payments) - 1; i >= 0 && excess.IsPositive(); i-- {
		p := payments[i]
		if p.Deposit.LessThanOrEqual(excess) {
			plan = append(plan, trimAction{PaymentID: p.ID, Delete: true})
			excess = excess.Sub(p.Deposit)
			continue
		}
		plan = append(plan, trimAction{PaymentID: p.ID, NewDeposit: p.Deposit.Sub(excess)})
		excess = decimal.Zero
	}
	return plan
}

// applyTrimPlan returns the payment slice after executing plan in memory,
// so the reconciler can recompute remains without a second read.
func applyTrimPlan(payments []Payment, plan []trimAction) []Payment {
	deleted := make(map[int]bool, len(plan))
	shrunk := make(map[int]decimal.Decimal, len(plan))
	for _, a := range plan {
		if a.Delete {
			deleted[a.PaymentID] = true
		} else {
			shrunk[a.PaymentID] = a.NewDeposit
		}
	}
	out := payments[:0]
	for _, p := range payments {
		if deleted[p.ID] {
			continue
		}
		if d, ok := shrunk[p.ID]; ok {
			p.Deposit = d
		}
		out = append(out, p)
	}
	return out
}
