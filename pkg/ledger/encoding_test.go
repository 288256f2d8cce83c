package ledger

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestEncodeGPA(t *testing.T) {
	cases := []struct {
		in      float64
		want    uint64
		wantErr bool
	}{
		{in: 0, want: 0},
		{in: 4, want: 400},
		{in: 3.67, want: 367},
		{in: 3.675, want: 368},
		{in: 2.004, want: 200},
		{in: 4.01, wantErr: true},
		{in: -0.1, wantErr: true},
		{in: math.NaN(), wantErr: true},
	}
	for _, tc := range cases {
		got, err := EncodeGPA(tc.in)
		if tc.wantErr {
			require.Error(t, err, "input %v", tc.in)
			continue
		}
		require.NoError(t, err, "input %v", tc.in)
		require.Equal(t, tc.want, got, "input %v", tc.in)
	}
}

func TestEncodeCreditsAndYear(t *testing.T) {
	v, err := EncodeCredits(144.5)
	require.NoError(t, err)
	require.EqualValues(t, 1445, v)
	require.InDelta(t, 144.5, DecodeCredits(v), 1e-9)

	_, err = EncodeCredits(1000.1)
	require.Error(t, err)

	y, err := EncodeYear(2026)
	require.NoError(t, err)
	require.EqualValues(t, 2026, y)
	_, err = EncodeYear(1800)
	require.Error(t, err)

	_, err = EncodeSemester(0)
	require.Error(t, err)
}

func TestEncodingRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("gpa hundredths survive decode/encode", prop.ForAll(
		func(n uint64) bool {
			got, err := EncodeGPA(DecodeGPA(n))
			return err == nil && got == n
		},
		gen.UInt64Range(0, 400),
	))

	properties.Property("credit tenths survive decode/encode", prop.ForAll(
		func(n uint64) bool {
			got, err := EncodeCredits(DecodeCredits(n))
			return err == nil && got == n
		},
		gen.UInt64Range(0, 10000),
	))

	properties.Property("token ids normalise to decimal", prop.ForAll(
		func(n int64) bool {
			dec, err := NormalizeTokenID(FormatTokenID(bigInt(n)))
			if err != nil {
				return false
			}
			hex, err := NormalizeTokenID("0x" + bigInt(n).Text(16))
			return err == nil && dec == hex
		},
		gen.Int64Range(0, math.MaxInt64),
	))

	properties.TestingRun(t)
}

func TestEncodeHashAndIDs(t *testing.T) {
	h := "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"
	b, err := EncodeHash(h)
	require.NoError(t, err)
	require.Equal(t, h, FormatBytes32(b))

	_, err = EncodeHash("0x1234")
	require.Error(t, err)

	require.Equal(t, EncodeID("student-1"), EncodeID("student-1"))
	require.NotEqual(t, EncodeID("student-1"), EncodeID("student-2"))

	// keccak256("") is a well-known constant.
	require.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", FormatBytes32(Keccak256(nil)))
	require.Equal(t, "0xa9059cbb", Selector("transfer(address,uint256)"))

	require.True(t, IsAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	require.False(t, IsAddress("52908400098527886E0F7030069857D2E4169EE7"))
}
