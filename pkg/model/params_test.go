package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebu/mcma-projects-sub000/pkg/locator"
)

func TestParameterBagPreservesOrder(t *testing.T) {
	bag := NewParameterBag(
		Parameter{Name: "inputFile", Value: String("s3://bucket/key")},
		Parameter{Name: "priority", Value: Number(3)},
		Parameter{Name: "overwrite", Value: Bool(true)},
	)

	data, err := json.Marshal(bag)
	require.NoError(t, err)
	assert.Equal(t, `{"inputFile":"s3://bucket/key","priority":3,"overwrite":true}`, string(data))

	var decoded ParameterBag
	require.NoError(t, json.Unmarshal(data, &decoded))

	params := decoded.Parameters()
	require.Len(t, params, 3)
	assert.Equal(t, "inputFile", params[0].Name)
	assert.Equal(t, "priority", params[1].Name)
	assert.Equal(t, "overwrite", params[2].Name)
}

func TestParameterBagSetReplacesInPlace(t *testing.T) {
	var bag ParameterBag
	bag.Set("a", Number(1))
	bag.Set("b", Number(2))
	bag.Set("a", Number(10))

	require.Equal(t, 2, bag.Len())
	params := bag.Parameters()
	assert.Equal(t, "a", params[0].Name)

	n, err := params[0].Value.AsNumber()
	require.NoError(t, err)
	assert.Equal(t, 10.0, n)
}

func TestParameterValueDecodesByShape(t *testing.T) {
	var bag ParameterBag
	input := `{"name":"clip","frames":1200,"keep":false,"output":{"@type":"S3Locator","bucket":"media-out","key":"clips/1.mp4"}}`
	require.NoError(t, json.Unmarshal([]byte(input), &bag))

	v, ok := bag.Get("name")
	require.True(t, ok)
	s, err := v.AsString()
	require.NoError(t, err)
	assert.Equal(t, "clip", s)

	v, _ = bag.Get("frames")
	n, err := v.AsNumber()
	require.NoError(t, err)
	assert.Equal(t, 1200.0, n)

	v, _ = bag.Get("keep")
	b, err := v.AsBool()
	require.NoError(t, err)
	assert.False(t, b)

	v, _ = bag.Get("output")
	loc, err := v.AsLocator()
	require.NoError(t, err)
	assert.Equal(t, locator.KindS3, loc.Kind())
}

func TestParameterValueKindMismatch(t *testing.T) {
	v := String("hello")
	_, err := v.AsNumber()
	assert.ErrorIs(t, err, ErrValueKind)
}

func TestParameterBagRejectsNonObject(t *testing.T) {
	var bag ParameterBag
	err := json.Unmarshal([]byte(`["not","an","object"]`), &bag)
	assert.Error(t, err)
}
