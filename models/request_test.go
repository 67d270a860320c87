package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestRequestValidate(t *testing.T) {
	valid := IngestRequest{RefType: "case", RefID: 1, CreatedBy: 2}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{"empty ref type", IngestRequest{RefID: 1, CreatedBy: 2}},
		{"ref type too long", IngestRequest{RefType: strings.Repeat("x", 31), RefID: 1, CreatedBy: 2}},
		{"zero ref id", IngestRequest{RefType: "case", CreatedBy: 2}},
		{"negative created by", IngestRequest{RefType: "case", RefID: 1, CreatedBy: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Validate())
		})
	}
}

func TestEmailSelectionValidate(t *testing.T) {
	valid := EmailSelection{
		EmailSourceIDs: []string{"a"},
		RefType:        "case",
		RefID:          1,
		CreatedBy:      2,
	}
	require.NoError(t, valid.Validate())

	empty := valid
	empty.EmailSourceIDs = nil
	assert.Error(t, empty.Validate())

	oversize := valid
	oversize.EmailSourceIDs = make([]string, MaxSelectionSize+1)
	assert.Error(t, oversize.Validate())

	badAttribution := valid
	badAttribution.RefType = ""
	assert.Error(t, badAttribution.Validate())
}

func TestEmailSelectionIngestRequest(t *testing.T) {
	sel := EmailSelection{RefType: "case", RefID: 7, CreatedBy: 3}
	assert.Equal(t, IngestRequest{RefType: "case", RefID: 7, CreatedBy: 3}, sel.IngestRequest())
}
