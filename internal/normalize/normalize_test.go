package normalize

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ratefeed/internal/provider"
)

func TestRatesTable(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{name: "present", body: `{"base":"AED","rates":{"INR":22.65478,"USD":0.2723}}`, want: "22.6548"},
		{name: "integer", body: `{"rates":{"INR":83}}`, want: "83"},
		{name: "missing code", body: `{"rates":{"USD":0.27}}`, wantErr: provider.ErrFieldMissing},
		{name: "no rates object", body: `{"success":false}`, wantErr: provider.ErrFieldMissing},
		{name: "string value", body: `{"rates":{"INR":"abc"}}`, wantErr: provider.ErrMalformedResponse},
		{name: "null value", body: `{"rates":{"INR":null}}`, wantErr: provider.ErrMalformedResponse},
		{name: "zero", body: `{"rates":{"INR":0}}`, wantErr: provider.ErrMalformedResponse},
		{name: "rounds to zero", body: `{"rates":{"INR":0.00004}}`, wantErr: provider.ErrMalformedResponse},
		{name: "rounds up to the last place", body: `{"rates":{"INR":0.00005}}`, want: "0.0001"},
		{name: "negative", body: `{"rates":{"INR":-1.5}}`, wantErr: provider.ErrMalformedResponse},
		{name: "not json", body: `<html>`, wantErr: provider.ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RatesTable([]byte(tc.body), "INR")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestCurrencyAPI(t *testing.T) {
	got, err := CurrencyAPI([]byte(`{"meta":{},"data":{"INR":{"code":"INR","value":22.651249}}}`), "INR")
	require.NoError(t, err)
	require.Equal(t, "22.6512", got.StringFixed(4))

	_, err = CurrencyAPI([]byte(`{"data":{"USD":{"code":"USD","value":0.27}}}`), "INR")
	require.ErrorIs(t, err, provider.ErrFieldMissing)

	_, err = CurrencyAPI([]byte(`{"data":{"INR":{"code":"INR"}}}`), "INR")
	require.ErrorIs(t, err, provider.ErrFieldMissing)

	_, err = CurrencyAPI([]byte(`{"data":{"KWD":{"value":0.0000187}}}`), "KWD")
	require.ErrorIs(t, err, provider.ErrMalformedResponse)

	_, err = CurrencyAPI([]byte(`{"data":{"INR":{"value":"x"}}}`), "INR")
	require.ErrorIs(t, err, provider.ErrMalformedResponse)
}

func TestRound4_HalfAwayFromZero(t *testing.T) {
	require.Equal(t, "1.2346", Round4(decimal.RequireFromString("1.23455")).String())
	require.Equal(t, "1.2345", Round4(decimal.RequireFromString("1.23454")).String())
	require.Equal(t, "83.1200", Round4(decimal.RequireFromString("83.12")).StringFixed(4))
}

func TestPrice(t *testing.T) {
	d, err := Price(189.98765)
	require.NoError(t, err)
	require.Equal(t, "189.9877", d.String())

	for _, bad := range []float64{0, -3, 0.00004, math.NaN(), math.Inf(1)} {
		_, err := Price(bad)
		require.ErrorIs(t, err, provider.ErrMalformedResponse)
	}
}

func TestOptionalPrice(t *testing.T) {
	require.Nil(t, OptionalPrice(nil))
	zero := 0.0
	require.Nil(t, OptionalPrice(&zero))
	v := 10.00004
	got := OptionalPrice(&v)
	require.NotNil(t, got)
	require.Equal(t, "10", got.String())
}
