package validator

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testImage struct {
	Src string `json:"src" validate:"required,http_url"`
}

type testItem struct {
	Title  string      `json:"title" validate:"required,max=5"`
	Count  *int64      `json:"count,omitempty" validate:"omitempty,gte=0"`
	Images []testImage `json:"images" validate:"omitempty,dive"`
}

type testPayload struct {
	Name  string     `json:"name" validate:"required"`
	Items []testItem `json:"items" validate:"required,min=1,dive"`
	Note  string     `json:"-"`
}

func messages(e *ValidationError) map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[FieldPath(fe)] = msgForTag(fe)
	}
	return out
}

func validPayload() testPayload {
	return testPayload{
		Name:  "ok",
		Items: []testItem{{Title: "a", Images: []testImage{{Src: "https://cdn.example.com/a.png"}}}},
	}
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validPayload()))
}

func TestValidate_UsesJSONPaths(t *testing.T) {
	p := validPayload()
	p.Name = ""
	p.Items = append(p.Items, testItem{Title: "toolong", Images: []testImage{{Src: "ok.png"}, {Src: "not a url"}}})

	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := messages(valErr)
	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "must be at most 5 characters", fields["items.1.title"])
	assert.Equal(t, "must be a valid URL", fields["items.1.images.0.src"])
	assert.Equal(t, "must be a valid URL", fields["items.1.images.1.src"])
	assert.NotContains(t, fields, "items.0.title")
}

func TestValidate_EmptySliceFailsMin(t *testing.T) {
	p := validPayload()
	p.Items = []testItem{}

	var valErr *ValidationError
	require.ErrorAs(t, Validate(p), &valErr)

	violations := valErr.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, "items", violations[0].Path)
	assert.Equal(t, "min", violations[0].Tag)
	assert.Equal(t, "1", violations[0].Param)
	assert.Equal(t, reflect.Slice, violations[0].Kind)
	assert.Equal(t, "must have at least 1 items", messages(valErr)["items"])
}

func TestValidate_NilSliceFailsRequired(t *testing.T) {
	p := validPayload()
	p.Items = nil

	var valErr *ValidationError
	require.ErrorAs(t, Validate(p), &valErr)
	assert.Equal(t, "is required", messages(valErr)["items"])
}

func TestValidate_OptionalPointer(t *testing.T) {
	neg := int64(-1)
	p := validPayload()
	p.Items[0].Count = &neg

	var valErr *ValidationError
	require.ErrorAs(t, Validate(p), &valErr)
	assert.Equal(t, "must be greater than or equal to 0", messages(valErr)["items.0.count"])

	zero := int64(0)
	p.Items[0].Count = &zero
	assert.NoError(t, Validate(p))
}

func TestValidationError_ErrorString(t *testing.T) {
	p := validPayload()
	p.Name = ""

	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'name' is required")
}

func TestViolations_SortedByPath(t *testing.T) {
	p := testPayload{Items: []testItem{{Title: ""}}}

	var valErr *ValidationError
	require.ErrorAs(t, Validate(p), &valErr)

	violations := valErr.Violations()
	require.Len(t, violations, 2)
	assert.Equal(t, "items.0.title", violations[0].Path)
	assert.Equal(t, "name", violations[1].Path)
}
