package cases

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region load-tests

func TestLoad_SampleDataset(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "sample_cases.json"))
	require.NoError(t, err)
	require.Equal(t, 12, s.Len())

	first := s.At(0)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 1, first.Days)
	assert.Equal(t, 47.0, first.Miles)
	assert.Equal(t, 17.97, first.Receipts)
	assert.Equal(t, 128.91, first.Expected)
}

// Duplicate input triples with different outputs are both kept, in order.
func TestLoad_PreservesDuplicates(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "sample_cases.json"))
	require.NoError(t, err)

	dups := s.Duplicates()
	require.Len(t, dups, 1)
	assert.Equal(t, []int{6, 11}, dups[0])
	assert.Equal(t, s.At(6).Key(), s.At(11).Key())
	assert.NotEqual(t, s.At(6).Expected, s.At(11).Expected)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nonexistent.json"))
	require.Error(t, err)
}

func TestLoad_MalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json}"), 0644))

	_, err := Load(path)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, -1, fe.Index)
}

func TestParse_TrailingData(t *testing.T) {
	for _, doc := range []string{
		`[{"input": {"trip_duration_days": 1, "miles_traveled": 47, "total_receipts_amount": 17.97}, "expected_output": 128.91}]]garbage`,
		`[] []`,
		`[] {}`,
	} {
		_, err := Parse(strings.NewReader(doc))
		var fe *FormatError
		require.ErrorAs(t, err, &fe, doc)
		assert.Equal(t, -1, fe.Index)
		assert.ErrorIs(t, err, ErrTrailingData, doc)
	}

	s, err := Parse(strings.NewReader("[]\n\t "))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

// #endregion load-tests

// #region parse-tests

func TestParse_FormatErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		field   string
		wantErr error
	}{
		{
			name:    "missing input",
			doc:     `[{"expected_output": 10}]`,
			field:   "input",
			wantErr: ErrMissingField,
		},
		{
			name:    "missing expected output",
			doc:     `[{"input": {"trip_duration_days": 1, "miles_traveled": 2, "total_receipts_amount": 3}}]`,
			field:   "expected_output",
			wantErr: ErrMissingField,
		},
		{
			name:    "missing miles",
			doc:     `[{"input": {"trip_duration_days": 1, "total_receipts_amount": 3}, "expected_output": 10}]`,
			field:   "input.miles_traveled",
			wantErr: ErrMissingField,
		},
		{
			name:    "null receipts",
			doc:     `[{"input": {"trip_duration_days": 1, "miles_traveled": 2, "total_receipts_amount": null}, "expected_output": 10}]`,
			field:   "input.total_receipts_amount",
			wantErr: ErrMissingField,
		},
		{
			name:    "non-numeric miles",
			doc:     `[{"input": {"trip_duration_days": 1, "miles_traveled": "far", "total_receipts_amount": 3}, "expected_output": 10}]`,
			wantErr: ErrBadValue,
		},
		{
			name:    "fractional duration",
			doc:     `[{"input": {"trip_duration_days": 1.5, "miles_traveled": 2, "total_receipts_amount": 3}, "expected_output": 10}]`,
			field:   "input.trip_duration_days",
			wantErr: ErrBadValue,
		},
		{
			name:    "negative duration",
			doc:     `[{"input": {"trip_duration_days": -1, "miles_traveled": 2, "total_receipts_amount": 3}, "expected_output": 10}]`,
			field:   "input.trip_duration_days",
			wantErr: ErrBadValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(strings.NewReader(tt.doc))
			assert.Nil(t, s, "no partial store on failure")

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, 0, fe.Index)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			if tt.field != "" {
				assert.Equal(t, tt.field, fe.Field)
			}
		})
	}
}

// A bad record after good ones still rejects the whole document.
func TestParse_NoPartialLoad(t *testing.T) {
	doc := `[
		{"input": {"trip_duration_days": 1, "miles_traveled": 2, "total_receipts_amount": 3}, "expected_output": 10},
		{"input": {"trip_duration_days": 1, "miles_traveled": 2}, "expected_output": 10}
	]`
	s, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Nil(t, s)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Index)
}

func TestParse_IntegralFloatDuration(t *testing.T) {
	doc := `[{"input": {"trip_duration_days": 3.0, "miles_traveled": 0, "total_receipts_amount": 0}, "expected_output": 300}]`
	s, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 3, s.At(0).Days)
}

// #endregion parse-tests

// #region iterate-tests

func TestAll_Restartable(t *testing.T) {
	s := NewStore([]Case{
		{Days: 1, Miles: 10, Receipts: 5, Expected: 100},
		{Days: 2, Miles: 20, Receipts: 6, Expected: 200},
		{Days: 3, Miles: 30, Receipts: 7, Expected: 300},
	})

	for pass := 0; pass < 2; pass++ {
		var seen []int
		for i, c := range s.All() {
			assert.Equal(t, i, c.Index)
			seen = append(seen, c.Days)
		}
		assert.Equal(t, []int{1, 2, 3}, seen, "pass %d", pass)
	}
}

func TestAll_EarlyBreak(t *testing.T) {
	s := NewStore([]Case{{Days: 1}, {Days: 2}, {Days: 3}})
	count := 0
	for range s.All() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestInputs_LoadOrder(t *testing.T) {
	s := NewStore([]Case{
		{Days: 3, Miles: 93, Receipts: 1.42, Expected: 364.51},
		{Days: 1, Miles: 47, Receipts: 17.97, Expected: 128.91},
	})
	assert.Equal(t, []Key{{Days: 3, Miles: 93, Receipts: 1.42}, {Days: 1, Miles: 47, Receipts: 17.97}}, s.Inputs())
	assert.Empty(t, NewStore(nil).Inputs())
}

// #endregion iterate-tests
