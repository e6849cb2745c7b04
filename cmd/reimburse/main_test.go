package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"HARNESS_DATASET", "HARNESS_LEDGER", "HARNESS_WORKERS", "HARNESS_LOG_LEVEL", "REGRESSOR_ADDR"} {
		t.Setenv(k, "")
	}
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

var sampleDataset = filepath.Join("..", "..", "internal", "cases", "testdata", "sample_cases.json")

func TestReimburse_ExactLookup(t *testing.T) {
	out, err := execute(t, "--dataset", sampleDataset, "1", "47", "17.97")
	require.NoError(t, err)
	assert.Equal(t, "128.91", out)
}

func TestReimburse_SpecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.json")
	require.NoError(t, formula.SaveSpec(path, formula.Spec{Kind: formula.KindLinear, Linear: &formula.LinearSpec{Days: 100, Miles: 0.5}}))

	out, err := execute(t, "--dataset", sampleDataset, "--spec", path, "2", "10", "0")
	require.NoError(t, err)
	assert.Equal(t, "205.00", out)
}

// Without a dataset the chain falls through to the baseline fit, which the
// minimum payout clamps for a one-day trip with no miles or receipts.
func TestReimburse_MissingDatasetUsesBaseline(t *testing.T) {
	out, err := execute(t, "--dataset", filepath.Join(t.TempDir(), "none.json"), "1", "0", "0")
	require.NoError(t, err)
	assert.Equal(t, "50.00", out)
}

func TestReimburse_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too few", []string{"1", "2"}},
		{"too many", []string{"1", "2", "3", "4"}},
		{"fractional days", []string{"1.5", "2", "3"}},
		{"non-numeric miles", []string{"1", "far", "3"}},
		{"non-numeric receipts", []string{"1", "2", "lots"}},
		{"negative miles", []string{"1", "-2", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
		})
	}
}
