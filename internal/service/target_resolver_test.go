package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/renderjobs/internal/domain/model"
	apperrors "github.com/target/renderjobs/internal/errors"
)

func TestJMESPathTargetResolver_Resolve(t *testing.T) {
	resolver, err := NewJMESPathTargetResolver("", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		want    model.TargetRef
	}{
		{
			name:    "content wins over project",
			payload: `{"contentId":"c-1","projectId":"p-1"}`,
			want:    model.TargetRef{Kind: model.TargetContent, ID: "c-1"},
		},
		{
			name:    "snake case content",
			payload: `{"content_id":"c-2"}`,
			want:    model.TargetRef{Kind: model.TargetContent, ID: "c-2"},
		},
		{
			name:    "project only",
			payload: `{"projectId":"p-1","type":"BANNER"}`,
			want:    model.TargetRef{Kind: model.TargetProject, ID: "p-1"},
		},
		{
			name:    "empty content falls through to project",
			payload: `{"contentId":"","project_id":"p-9"}`,
			want:    model.TargetRef{Kind: model.TargetProject, ID: "p-9"},
		},
		{
			name:    "integer content id",
			payload: `{"contentId":42}`,
			want:    model.TargetRef{Kind: model.TargetContent, ID: "42"},
		},
		{
			name:    "integer project id written as float",
			payload: `{"project_id":7.0}`,
			want:    model.TargetRef{Kind: model.TargetProject, ID: "7"},
		},
		{
			name:    "null content falls through to project",
			payload: `{"contentId":null,"projectId":"p-3"}`,
			want:    model.TargetRef{Kind: model.TargetProject, ID: "p-3"},
		},
		{
			name:    "no target",
			payload: `{"type":"BANNER"}`,
			want:    model.TargetRef{},
		},
		{
			name:    "array payload",
			payload: `[1,2,3]`,
			want:    model.TargetRef{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJMESPathTargetResolver_RejectsUnusableIDs(t *testing.T) {
	resolver, err := NewJMESPathTargetResolver("", "")
	require.NoError(t, err)

	for _, payload := range []string{
		`{"contentId":4.5}`,
		`{"contentId":true}`,
		`{"projectId":{"id":"p-1"}}`,
		`{"contentId":["c-1"]}`,
		`{"contentId":1e300}`,
	} {
		t.Run(payload, func(t *testing.T) {
			got, err := resolver.Resolve([]byte(payload))
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.True(t, got.IsZero())
		})
	}
}

func TestJMESPathTargetResolver_CustomExpressions(t *testing.T) {
	resolver, err := NewJMESPathTargetResolver("target.content", "target.project")
	require.NoError(t, err)

	got, err := resolver.Resolve([]byte(`{"target":{"project":"p-7"},"contentId":"ignored"}`))
	require.NoError(t, err)
	assert.Equal(t, model.TargetRef{Kind: model.TargetProject, ID: "p-7"}, got)
}

func TestJMESPathTargetResolver_Errors(t *testing.T) {
	_, err := NewJMESPathTargetResolver("contentId ||", "")
	require.Error(t, err)

	resolver, err := NewJMESPathTargetResolver("", "")
	require.NoError(t, err)
	_, err = resolver.Resolve([]byte(`{not json`))
	assert.Error(t, err)

	got, err := resolver.Resolve(nil)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
