package filter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ultrarare-tech/secfetch/internal/filter"
	"github.com/ultrarare-tech/secfetch/internal/model"
)

func row(cik, form, filename string) model.FilingRow {
	return model.FilingRow{CIK: cik, FormType: form, DateFiled: time.Now(), Filename: filename}
}

func TestMatch_RequiresFormInSet(t *testing.T) {
	f := filter.New([]string{"10-K"}, false)
	assert.True(t, f.Match(row("1", "10-K", "edgar/data/1/a.txt")))
	assert.False(t, f.Match(row("1", "10-Q", "edgar/data/1/a.txt")))
}

func TestMatch_ExcludesAmendmentsByDefault(t *testing.T) {
	f := filter.New([]string{"10-K", "10-K/A"}, false)
	assert.True(t, f.Match(row("1", "10-K", "edgar/data/1/a.txt")))
	assert.False(t, f.Match(row("1", "10-K/A", "edgar/data/1/a.txt")))
}

func TestMatch_IncludesAmendmentsWhenRequested(t *testing.T) {
	f := filter.New([]string{"10-K/A"}, true)
	assert.True(t, f.Match(row("1", "10-K/A", "edgar/data/1/a.txt")))
}

func TestApply_DedupsThenFiltersThenRestrictsByCIK(t *testing.T) {
	rows := []model.FilingRow{
		row("0000000001", "10-K", "edgar/data/1/acc-24-000001.txt"),
		row("0000000001", "10-K", "edgar/data/1/acc-24-000001.txt"), // duplicate accession
		row("0000000002", "10-K", "edgar/data/2/acc-24-000002.txt"),
		row("0000000001", "8-K", "edgar/data/1/acc-24-000003.txt"), // wrong form
	}
	f := filter.New([]string{"10-K"}, false)

	all := filter.Apply(rows, f, nil)
	assert.Len(t, all, 2)

	restricted := filter.Apply(rows, f, map[string]struct{}{"0000000001": {}})
	assert.Len(t, restricted, 1)
	assert.Equal(t, "0000000001", restricted[0].CIK)
}

func TestApply_EmptyCIKAllowMeansNoRestriction(t *testing.T) {
	rows := []model.FilingRow{
		row("0000000001", "10-K", "edgar/data/1/acc-24-000001.txt"),
		row("0000000002", "10-K", "edgar/data/2/acc-24-000002.txt"),
	}
	f := filter.New([]string{"10-K"}, false)
	out := filter.Apply(rows, f, map[string]struct{}{})
	assert.Len(t, out, 2)
}
