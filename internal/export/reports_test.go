package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas/internal/core"
)

func TestWriteCashFlow(t *testing.T) {
	rows := []core.CashFlowRow{
		{
			Year:     2026,
			Month:    1,
			Inflows:  decimal.RequireFromString("1200.00"),
			Outflows: decimal.RequireFromString("450.50"),
			Net:      decimal.RequireFromString("749.50"),
			Balance:  decimal.RequireFromString("1749.50"),
		},
		{
			Year:     2026,
			Month:    2,
			Inflows:  decimal.Zero,
			Outflows: decimal.RequireFromString("100.00"),
			Net:      decimal.RequireFromString("-100.00"),
			Balance:  decimal.RequireFromString("1649.50"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCashFlow(&buf, rows))

	want := CashFlowHeader + "\n" +
		"2026,1,1200.00,450.50,749.50,1749.50\n" +
		"2026,2,0.00,100.00,-100.00,1649.50\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCashFlowEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCashFlow(&buf, nil))
	assert.Equal(t, CashFlowHeader+"\n", buf.String())
}

func TestWriteAccounts(t *testing.T) {
	accounts := []core.Account{
		{Code: "100-000-000-000", Name: "Activos", Active: true},
		{Code: "510-100-000-000", Name: "Gastos de administración", Active: false},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))

	want := AccountsHeader + "\n" +
		"100-000-000-000,Activos,true\n" +
		"510-100-000-000,Gastos de administración,false\n"
	assert.Equal(t, want, buf.String())
}
