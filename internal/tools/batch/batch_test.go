package batch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringOrArray(t *testing.T) {
	tests := []struct {
		name    string
		param   interface{}
		want    []string
		wantErr string
	}{
		{
			name:  "single string",
			param: "job-1",
			want:  []string{"job-1"},
		},
		{
			name:  "array of strings",
			param: []interface{}{"job-1", "job-2"},
			want:  []string{"job-1", "job-2"},
		},
		{
			name:    "nil",
			param:   nil,
			wantErr: "jobIds is required",
		},
		{
			name:    "empty string",
			param:   "",
			wantErr: "jobIds cannot be empty",
		},
		{
			name:    "empty array",
			param:   []interface{}{},
			wantErr: "jobIds cannot be empty",
		},
		{
			name:    "array with non-string",
			param:   []interface{}{"job-1", 42},
			wantErr: "jobIds[1] must be a string",
		},
		{
			name:    "array with empty string",
			param:   []interface{}{"job-1", ""},
			wantErr: "jobIds[1] cannot be empty",
		},
		{
			name:    "wrong type",
			param:   42,
			wantErr: "jobIds must be a string or array of strings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringOrArray(tt.param, "jobIds")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessBatch(t *testing.T) {
	results := ProcessBatch([]string{"a", "b", "c"}, func(id string) (string, error) {
		if id == "b" {
			return "", errors.New("not found")
		}
		return "cancelled " + id, nil
	})

	require.Len(t, results, 3)
	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, "cancelled a", results[0].Result)
	assert.Equal(t, "error", results[1].Status)
	assert.Equal(t, "not found", results[1].Error)
	assert.Equal(t, "success", results[2].Status)
}

func TestFormatResults(t *testing.T) {
	results := []Result{
		{ID: "a", Status: "success", Result: "ok"},
		{ID: "b", Status: "error", Error: "boom"},
	}

	var br BatchResult
	require.NoError(t, json.Unmarshal([]byte(FormatResults(results)), &br))

	assert.Equal(t, 2, br.Total)
	assert.Equal(t, 1, br.Successful)
	assert.Equal(t, 1, br.Failed)
	require.Len(t, br.Results, 2)
	assert.Equal(t, "a", br.Results[0].ID)
}
