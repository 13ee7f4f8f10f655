package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/renderjobs/internal/core"
	"github.com/target/renderjobs/internal/domain/model"
	apperrors "github.com/target/renderjobs/internal/errors"
)

// Default target expressions accept both camelCase and snake_case payload keys.
const (
	DefaultContentExpr = "contentId || content_id"
	DefaultProjectExpr = "projectId || project_id"
)

// maxExactJSONInt is the largest integer a JSON number decoded into float64 holds exactly.
const maxExactJSONInt = 1 << 53

var _ core.TargetResolver = (*JMESPathTargetResolver)(nil)

type targetExpr struct {
	source string
	query  jmespath.JMESPath
}

// JMESPathTargetResolver finds a job's dependent entity by evaluating JMESPath
// expressions over its payload. Content wins over project.
type JMESPathTargetResolver struct {
	content targetExpr
	project targetExpr
}

// NewJMESPathTargetResolver compiles the content and project expressions.
// Empty expressions fall back to the defaults.
func NewJMESPathTargetResolver(contentExpr, projectExpr string) (*JMESPathTargetResolver, error) {
	content, err := compileTargetExpr("content", contentExpr, DefaultContentExpr)
	if err != nil {
		return nil, err
	}
	project, err := compileTargetExpr("project", projectExpr, DefaultProjectExpr)
	if err != nil {
		return nil, err
	}
	return &JMESPathTargetResolver{content: content, project: project}, nil
}

func compileTargetExpr(kind, expr, fallback string) (targetExpr, error) {
	if strings.TrimSpace(expr) == "" {
		expr = fallback
	}
	q, err := jmespath.Compile(expr)
	if err != nil {
		return targetExpr{}, fmt.Errorf("compile %s expression %q: %w", kind, expr, err)
	}
	return targetExpr{source: expr, query: q}, nil
}

// Resolve returns the content reference when present, else the project reference,
// else a zero TargetRef. Ids may be strings or integral numbers; any other
// non-null value is a validation error.
func (r *JMESPathTargetResolver) Resolve(payload []byte) (model.TargetRef, error) {
	if len(payload) == 0 {
		return model.TargetRef{}, nil
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return model.TargetRef{}, fmt.Errorf("decode job payload: %w", err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return model.TargetRef{}, nil
	}

	if id, err := r.content.searchID(doc); err != nil {
		return model.TargetRef{}, err
	} else if id != "" {
		return model.TargetRef{Kind: model.TargetContent, ID: id}, nil
	}

	if id, err := r.project.searchID(doc); err != nil {
		return model.TargetRef{}, err
	} else if id != "" {
		return model.TargetRef{Kind: model.TargetProject, ID: id}, nil
	}
	return model.TargetRef{}, nil
}

func (e targetExpr) searchID(doc any) (string, error) {
	v, err := e.query.Search(doc)
	if err != nil {
		return "", fmt.Errorf("evaluate target expression %q: %w", e.source, err)
	}
	switch id := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(id), nil
	case float64:
		if id != math.Trunc(id) || math.Abs(id) > maxExactJSONInt {
			return "", apperrors.ValidationField("payload",
				fmt.Sprintf("target id from %q must be a string or integer, got %v", e.source, id))
		}
		return strconv.FormatInt(int64(id), 10), nil
	default:
		return "", apperrors.ValidationField("payload",
			fmt.Sprintf("target id from %q must be a string or integer, got %T", e.source, v))
	}
}
