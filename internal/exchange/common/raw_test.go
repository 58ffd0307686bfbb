package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneOrManyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []int
	}{
		{name: "absent", body: `{}`, want: nil},
		{name: "null", body: `{"V":null}`, want: nil},
		{name: "bare", body: `{"V":7}`, want: []int{7}},
		{name: "list of one", body: `{"V":[7]}`, want: []int{7}},
		{name: "list", body: `{"V":[1,2,3]}`, want: []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct{ V OneOrMany[int] }
			require.NoError(t, json.Unmarshal([]byte(tt.body), &v))
			assert.Equal(t, tt.want, []int(v.V))
		})
	}
}

func TestOrderRefAcceptsNumbersAndStrings(t *testing.T) {
	var v struct{ A, B OrderRef }
	require.NoError(t, json.Unmarshal([]byte(`{"A":123456789012,"B":"X"}`), &v))
	assert.Equal(t, OrderRef("123456789012"), v.A)
	assert.Equal(t, OrderRef("X"), v.B)
}

func TestRawSelectionPricesCollectsUnknownFields(t *testing.T) {
	var s RawSelectionPrices
	body := `{"Id":5,"Name":"Runner","ResetCount":2,"Colour":"red","AgeYears":4,"ForSidePrices":{"Price":"2.5","Stake":"10"}}`
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	assert.Equal(t, int64(5), s.ID)
	assert.Equal(t, int64(2), s.ResetCount)
	assert.Equal(t, []string{"AgeYears", "Colour"}, s.Unknown)
	require.Len(t, s.ForSidePrices, 1)
	assert.Equal(t, "2.5", s.ForSidePrices[0].Price.String())
}

func TestParseOrderStatus(t *testing.T) {
	for code := 1; code <= 6; code++ {
		st, err := ParseOrderStatus(code)
		require.NoError(t, err)
		assert.Equal(t, code, int(st))
	}
	for _, code := range []int{0, 7, -1} {
		_, err := ParseOrderStatus(code)
		var de *DataError
		assert.True(t, errors.As(err, &de), "code %d", code)
	}
}

func TestApiErrorSentinels(t *testing.T) {
	err := CheckStatus("poll", ReturnStatus{Code: StatusPunterBlacklisted})
	assert.ErrorIs(t, err, ErrBlacklisted)
	assert.NotErrorIs(t, err, ErrInvalidSequence)

	err = CheckStatus("bootstrap", ReturnStatus{Code: StatusSequenceNumberInvalid})
	assert.ErrorIs(t, err, ErrInvalidSequence)

	assert.NoError(t, CheckStatus("poll", ReturnStatus{}))

	ae := &ApiError{Op: "place", Code: 5, Chunk: 1}
	assert.Contains(t, ae.Error(), "chunk 1")
}

func TestParseExchangeID(t *testing.T) {
	id, err := ParseExchangeID(" BDAQ ")
	require.NoError(t, err)
	assert.Equal(t, BDAQ, id)
	_, err = ParseExchangeID("smarkets")
	assert.Error(t, err)
}
