package domain

import "time"

// CreditAction is the outcome of evaluating a profile against the credit rules.
type CreditAction int

const (
	CreditDeny CreditAction = iota
	CreditBypassAdmin
	CreditBypassVIP
	CreditConsume
)

func (a CreditAction) String() string {
	switch a {
	case CreditBypassAdmin:
		return "admin"
	case CreditBypassVIP:
		return "vip"
	case CreditConsume:
		return "consume"
	}
	return "deny"
}

// DenyReason explains why the credit gate refused a reading.
type DenyReason string

const (
	DenyNone             DenyReason = ""
	DenyNoCredits        DenyReason = "no_credits"
	DenyProfileNotFound  DenyReason = "profile_not_found"
	DenyPersistenceError DenyReason = "persistence_error"
)

// DecideCredit applies the gate rules in order; the first match wins.
//
//  1. admin status: allow without touching the balance
//  2. non-free status with an end date in the future: allow without touching the balance
//  3. positive balance: consume one credit
//  4. otherwise deny
func DecideCredit(p Profile, now time.Time) CreditAction {
	switch {
	case p.IsAdmin():
		return CreditBypassAdmin
	case p.IsActiveVIP(now):
		return CreditBypassVIP
	case p.Credits > 0:
		return CreditConsume
	}
	return CreditDeny
}

// CreditResult is returned by the credit gate.
type CreditResult struct {
	Allowed   bool       `json:"allowed"`
	Reason    DenyReason `json:"reason,omitempty"`
	Consumed  bool       `json:"consumed"`  // exactly one credit was deducted
	Remaining int        `json:"remaining"` // balance after the gate ran, when known
}

// AllowCredit builds an allowing result.
func AllowCredit(consumed bool, remaining int) CreditResult {
	return CreditResult{Allowed: true, Consumed: consumed, Remaining: remaining}
}

// DenyCredit builds a denying result.
func DenyCredit(reason DenyReason) CreditResult {
	return CreditResult{Reason: reason}
}

// Err converts a denial into an application error for the caller to render.
func (r CreditResult) Err(op string) error {
	if r.Allowed {
		return nil
	}
	switch r.Reason {
	case DenyNoCredits:
		return PaymentRequired(op, "You have no credits left. Buy more credits or subscribe to keep reading.")
	case DenyProfileNotFound:
		return Unauthorized(op, "Your profile could not be found. Please sign in again.")
	}
	return Errorf(EINTERNAL, op, "could not check your credits")
}

// creditBands maps a minimum paid amount, in minor units, to the credits
// it buys. Bands are checked from the largest down.
var creditBands = []struct {
	minAmount int64
	credits   int
}{
	{4990, 30},
	{2990, 15},
	{1490, 7},
	{590, 3},
}

// CreditsForAmount returns the credits bought by a one-off payment of
// amount minor units. Amounts below the smallest band buy nothing.
func CreditsForAmount(amount int64) int {
	for _, b := range creditBands {
		if amount >= b.minAmount {
			return b.credits
		}
	}
	return 0
}
