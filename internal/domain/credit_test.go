package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecideCredit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name    string
		profile Profile
		want    CreditAction
	}{
		{"admin with zero credits", Profile{SubscriptionStatus: SubscriptionAdmin}, CreditBypassAdmin},
		{"admin with credits", Profile{SubscriptionStatus: SubscriptionAdmin, Credits: 5}, CreditBypassAdmin},
		{"vip with future end date", Profile{SubscriptionStatus: SubscriptionMonthly, SubscriptionEndDate: &future}, CreditBypassVIP},
		{"vip with credits still bypasses", Profile{SubscriptionStatus: SubscriptionYearly, SubscriptionEndDate: &future, Credits: 3}, CreditBypassVIP},
		{"custom tier with future end date", Profile{SubscriptionStatus: "semestral", SubscriptionEndDate: &future}, CreditBypassVIP},
		{"expired vip with credits", Profile{SubscriptionStatus: SubscriptionMonthly, SubscriptionEndDate: &past, Credits: 2}, CreditConsume},
		{"expired vip without credits", Profile{SubscriptionStatus: SubscriptionMonthly, SubscriptionEndDate: &past}, CreditDeny},
		{"vip without end date", Profile{SubscriptionStatus: SubscriptionMonthly, Credits: 0}, CreditDeny},
		{"free with future end date", Profile{SubscriptionStatus: SubscriptionFree, SubscriptionEndDate: &future, Credits: 1}, CreditConsume},
		{"free with credits", Profile{SubscriptionStatus: SubscriptionFree, Credits: 1}, CreditConsume},
		{"free without credits", Profile{SubscriptionStatus: SubscriptionFree}, CreditDeny},
		{"end date exactly now is expired", Profile{SubscriptionStatus: SubscriptionMonthly, SubscriptionEndDate: &now}, CreditDeny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideCredit(tt.profile, now))
		})
	}
}

func TestCreditResult_Err(t *testing.T) {
	tests := []struct {
		name     string
		result   CreditResult
		wantCode string
	}{
		{"allowed", AllowCredit(true, 4), ""},
		{"no credits", DenyCredit(DenyNoCredits), EPAYMENT},
		{"profile missing", DenyCredit(DenyProfileNotFound), EUNAUTHORIZED},
		{"persistence", DenyCredit(DenyPersistenceError), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Err("reading.gate")
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantCode, ErrorCode(err))
		})
	}
}

func TestProfile_IsActiveVIP(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)

	p := Profile{SubscriptionStatus: SubscriptionFree, SubscriptionEndDate: &future}
	assert.False(t, p.IsActiveVIP(now))

	p.SubscriptionStatus = SubscriptionMonthly
	assert.True(t, p.IsActiveVIP(now))
	assert.False(t, p.IsActiveVIP(future.Add(time.Second)))
}

func TestParseSubscriptionStatus(t *testing.T) {
	s, err := ParseSubscriptionStatus("  Mensal ")
	assert.NoError(t, err)
	assert.Equal(t, SubscriptionMonthly, s)
	assert.True(t, s.IsVIPTier())

	_, err = ParseSubscriptionStatus("   ")
	assert.Equal(t, EINVALID, ErrorCode(err))
}

func TestCreditsForAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   int
	}{
		{0, 0},
		{589, 0},
		{590, 3},
		{1489, 3},
		{1490, 7},
		{2990, 15},
		{4989, 15},
		{4990, 30},
		{99900, 30},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CreditsForAmount(tt.amount), "amount %d", tt.amount)
	}
}
