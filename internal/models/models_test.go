package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw      string
		valid    bool
		positive bool
	}{
		{raw: "40.00", valid: true, positive: true},
		{raw: " 12 ", valid: true, positive: true},
		{raw: "-5", valid: true, positive: false},
		{raw: "0", valid: true, positive: false},
		{raw: "abc", valid: false, positive: false},
		{raw: "", valid: false, positive: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			a := ParseAmount(tt.raw)
			assert.Equal(t, tt.valid, a.Valid)
			assert.Equal(t, tt.positive, a.Positive())
		})
	}
}

func TestAmountEncodesAsNumberOrNull(t *testing.T) {
	body, err := json.Marshal(WithdrawRequest{Amount: ParseAmount("-5"), SenderAccountID: ParseID("7")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":-5,"sender_account_id":7}`, string(body))

	body, err = json.Marshal(DepositRequest{Amount: ParseAmount("lots"), ReceiverAccountID: ParseID("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":null,"receiver_account_id":null}`, string(body))
}

func TestAmountDecodesNumbersAndStrings(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`40.5`), &a))
	assert.True(t, a.Decimal.Equal(decimal.RequireFromString("40.5")))

	require.NoError(t, json.Unmarshal([]byte(`"12.25"`), &a))
	assert.Equal(t, "12.25", a.String())

	require.NoError(t, json.Unmarshal([]byte(`null`), &a))
	assert.False(t, a.Valid)
}

func TestTimestampAcceptsZonelessValues(t *testing.T) {
	var entry AccessLogEntry
	err := json.Unmarshal([]byte(`{"id":1,"action":"login","created_at":"2024-05-01T10:00:00.123456"}`), &entry)
	require.NoError(t, err)

	want := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)
	assert.True(t, entry.CreatedAt.Equal(want), "got %s", entry.CreatedAt)

	err = json.Unmarshal([]byte(`{"created_at":"2024-05-01T10:00:00+02:00"}`), &entry)
	require.NoError(t, err)
	assert.Equal(t, 8, entry.CreatedAt.Hour())

	err = json.Unmarshal([]byte(`{"created_at":"yesterday"}`), &entry)
	assert.Error(t, err)
}

func TestAccountDecodesNumericBalance(t *testing.T) {
	var acc Account
	err := json.Unmarshal([]byte(`{"id":3,"account_number":"1234-5678-9012-3456","balance":100.0,"owner_id":1,"created_at":"2024-05-01T10:00:00"}`), &acc)
	require.NoError(t, err)
	assert.Equal(t, "100.00", acc.Balance.StringFixed(2))
}

func TestTransactionKind(t *testing.T) {
	a, b := 1, 2
	assert.Equal(t, KindTransfer, Transaction{SenderAccountID: &a, ReceiverAccountID: &b}.Kind())
	assert.Equal(t, KindDeposit, Transaction{ReceiverAccountID: &b}.Kind())
	assert.Equal(t, KindWithdrawal, Transaction{SenderAccountID: &a}.Kind())
}
