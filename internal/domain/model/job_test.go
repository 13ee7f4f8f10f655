package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_Valid(t *testing.T) {
	assert.True(t, JobTypeImageGeneration.Valid())
	assert.True(t, JobTypeVideoGeneration.Valid())
	assert.True(t, JobTypeMockupComposition.Valid())
	assert.True(t, JobTypeBannerGeneration.Valid())
	assert.False(t, JobType("unknown").Valid())
}

func TestJobType_UnmarshalText(t *testing.T) {
	var jt JobType
	require.NoError(t, jt.UnmarshalText([]byte(" banner_generation ")))
	assert.Equal(t, JobTypeBannerGeneration, jt)

	assert.Error(t, jt.UnmarshalText([]byte("browser")))
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusRequested.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusSucceeded.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestCreateJobRequest_Validate(t *testing.T) {
	valid := CreateJobRequest{
		ProjectID: "p-1",
		Type:      JobTypeBannerGeneration,
		Payload:   json.RawMessage(`{"type":"BANNER"}`),
	}
	require.NoError(t, valid.Validate())

	missingProject := valid
	missingProject.ProjectID = " "
	assert.EqualError(t, missingProject.Validate(), "project id is required")

	badType := valid
	badType.Type = "NOPE"
	assert.EqualError(t, badType.Validate(), "invalid job type")

	noPayload := valid
	noPayload.Payload = nil
	assert.EqualError(t, noPayload.Validate(), "payload is required")
}

func TestFinalizeJobParams_Validate(t *testing.T) {
	id := "550e8400-e29b-41d4-a716-446655440000"
	tests := []struct {
		name    string
		params  FinalizeJobParams
		wantErr bool
	}{
		{name: "success", params: FinalizeJobParams{JobID: id, Status: JobStatusSucceeded, OutputURL: "https://x/y.png"}},
		{name: "failure", params: FinalizeJobParams{JobID: id, Status: JobStatusFailed, ErrorCode: "E"}},
		{name: "bad id", params: FinalizeJobParams{JobID: "nope", Status: JobStatusFailed, ErrorCode: "E"}, wantErr: true},
		{name: "success without output", params: FinalizeJobParams{JobID: id, Status: JobStatusSucceeded}, wantErr: true},
		{
			name:    "success with error",
			params:  FinalizeJobParams{JobID: id, Status: JobStatusSucceeded, OutputURL: "u", ErrorCode: "E"},
			wantErr: true,
		},
		{name: "failure without code", params: FinalizeJobParams{JobID: id, Status: JobStatusFailed}, wantErr: true},
		{
			name:    "failure with output",
			params:  FinalizeJobParams{JobID: id, Status: JobStatusFailed, ErrorCode: "E", OutputURL: "u"},
			wantErr: true,
		},
		{name: "non-terminal", params: FinalizeJobParams{JobID: id, Status: JobStatusRunning}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResultOutcome_Normalize(t *testing.T) {
	o := ResultOutcome{Success: false, ErrorMessage: "  boom  "}.Normalize()
	assert.Equal(t, ErrorCodeWorkerFailed, o.ErrorCode)
	assert.Equal(t, "boom", o.ErrorMessage)
	assert.NoError(t, o.Validate())

	s := ResultOutcome{Success: true, OutputURI: "  "}.Normalize()
	assert.ErrorIs(t, s.Validate(), ErrOutputURIRequired)
	assert.Equal(t, "outputUri", InvalidField(s.Validate()))

	longCode := ResultOutcome{Success: false, ErrorCode: strings.Repeat("E", MaxErrorCodeLength+1)}.Normalize()
	assert.Equal(t, "errorCode", InvalidField(longCode.Validate()))

	longURI := ResultOutcome{Success: true, OutputURI: "https://x/" + strings.Repeat("a", MaxOutputURLLength)}
	assert.Equal(t, "outputUri", InvalidField(longURI.Validate()))
	assert.Empty(t, InvalidField(errors.New("other")))

	long := ResultOutcome{Success: false, ErrorMessage: strings.Repeat("é", MaxErrorMessageLength)}.Normalize()
	assert.LessOrEqual(t, len(long.ErrorMessage), MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(long.ErrorMessage, "é"))
}

func TestResultMessage_Outcome(t *testing.T) {
	yes := true
	m := ResultMessage{JobID: "j", Success: &yes, OutputURI: "store://b/k"}
	assert.Equal(t, ResultOutcome{Success: true, OutputURI: "store://b/k"}, m.Outcome())

	byStatus := ResultMessage{JobID: "j", Status: JobStatusSucceeded, OutputURI: "u"}
	assert.True(t, byStatus.Outcome().Success)

	failed := ResultMessage{JobID: "j", ErrorCode: "OOM"}
	assert.False(t, failed.Outcome().Success)

	assert.True(t, ResultMessage{Status: JobStatusRunning}.IsProgress())
}
