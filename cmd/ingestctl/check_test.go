package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/IngestDrop/internal/ingest"
	"github.com/dharsanguruparan/IngestDrop/internal/model"
	"github.com/dharsanguruparan/IngestDrop/internal/processing"
)

func TestCheckFile_ReportsFindingsByRow(t *testing.T) {
	data := []byte("email;nome;sobrenome;empresa\n" +
		"ana@example.com;Ana;Silva;Acme\n" +
		"\n" +
		"ANA@example.com;Ana;Souza;Acme\n" +
		"bob@example.com;Bob;Lee;Initech\n")

	report, err := checkFile("contacts.csv", data, 1<<20, processing.Options{}, []string{"BOB@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "utf-8", report.Encoding)
	assert.Equal(t, "semicolon", report.Delimiter)
	assert.Equal(t, 3, report.TotalRows)
	assert.Equal(t, string(model.JobNeedsReview), report.Status)

	byType := map[model.IssueType][]int{}
	for _, is := range report.Issues {
		byType[is.Type] = is.Rows
	}
	assert.Equal(t, []int{2, 4}, byType[model.IssueDuplicateEmail])
	assert.Equal(t, []int{5}, byType[model.IssueExistingEmail])

	var buf bytes.Buffer
	require.NoError(t, report.write(&buf))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "contacts.csv", decoded["file"])
}

func TestCheckFile_CleanFileCompletes(t *testing.T) {
	report, err := checkFile("c.csv", []byte("email,first_name,last_name,company\na@b.com,A,B,C\n"), 0, processing.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(model.JobCompleted), report.Status)
	assert.Empty(t, report.Issues)
}

func TestCheckFile_RejectsBadInput(t *testing.T) {
	_, err := checkFile("c.txt", []byte("x"), 0, processing.Options{}, nil)
	var invalid *ingest.ValidationError
	assert.ErrorAs(t, err, &invalid)

	_, err = checkFile("c.csv", []byte("email,first_name,last_name,company\n"), 0, processing.Options{}, nil)
	var empty *ingest.EmptyContentError
	assert.ErrorAs(t, err, &empty)
}
