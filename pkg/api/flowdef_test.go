package api

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleetrun/sleet/pkg/runtime"
)

func validFlowDefinition() FlowDefinition {
	return FlowDefinition{
		ID:           "f1",
		StartBlockID: "start",
		Blocks: []BlockWireType{
			{ID: "start", Type: "Display", Properties: map[string]any{"message": "hi"}},
			{ID: "default", Type: "Display", Properties: map[string]any{"message": "done"}},
		},
	}
}

func TestDecodeFlowDefinition_Valid(t *testing.T) {
	flow, err := DecodeFlowDefinition(validFlowDefinition())
	require.NoError(t, err)
	assert.Equal(t, "f1", flow.ID)
	assert.Equal(t, "start", flow.Entry)
	require.Contains(t, flow.Blocks, "default")
	assert.Equal(t, runtime.BlockTerminator, flow.Blocks["default"].Type)
	assert.Empty(t, flow.Blocks["default"].Next)
}

func TestDecodeFlowDefinition_MissingID(t *testing.T) {
	def := validFlowDefinition()
	def.ID = ""
	_, err := DecodeFlowDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing flow id")
}

func TestDecodeFlowDefinition_MissingStartBlockID(t *testing.T) {
	def := validFlowDefinition()
	def.StartBlockID = ""
	_, err := DecodeFlowDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing start_block_id")
}

func TestDecodeFlowDefinition_UnknownType(t *testing.T) {
	def := validFlowDefinition()
	def.Blocks[0].Type = "Bogus"
	_, err := DecodeFlowDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown block type "Bogus"`)
}

func TestDecodeFlowDefinition_MissingRequiredProperty(t *testing.T) {
	def := FlowDefinition{
		ID:           "f1",
		StartBlockID: "start",
		Blocks: []BlockWireType{
			{ID: "start", Type: "Display", Properties: map[string]any{}},
			{ID: "default", Type: "Display", Properties: map[string]any{"message": "done"}},
		},
	}
	_, err := DecodeFlowDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required property "message"`)
}

func TestDecodeFlowDefinition_ComputeRequiresDefaultTerminator(t *testing.T) {
	bc := base64.StdEncoding.EncodeToString(haltBytecode())
	def := FlowDefinition{
		ID:           "f1",
		StartBlockID: "start",
		Blocks: []BlockWireType{
			{ID: "start", Type: "Compute", Properties: map[string]any{
				"expression_bytecode": bc,
				"output_key":          "x",
			}},
		},
	}
	_, err := DecodeFlowDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no "default" terminator`)
}

func TestDecodeFlowDefinition_InvalidBase64Bytecode(t *testing.T) {
	def := FlowDefinition{
		ID:           "f1",
		StartBlockID: "start",
		Blocks: []BlockWireType{
			{ID: "start", Type: "Compute", Properties: map[string]any{
				"expression_bytecode": "not-base64!!",
				"output_key":          "x",
			}},
			{ID: "default", Type: "Display", Properties: map[string]any{"message": "done"}},
		},
	}
	_, err := DecodeFlowDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid base64")
}

func TestDecodeFlowDefinition_ConditionalBranches(t *testing.T) {
	bc := base64.StdEncoding.EncodeToString(haltBytecode())
	def := FlowDefinition{
		ID:           "f1",
		StartBlockID: "start",
		Blocks: []BlockWireType{
			{ID: "start", Type: "Conditional", Properties: map[string]any{
				"expression_bytecode": bc,
				"true_block":          "default",
				"false_block":         "default",
			}},
			{ID: "default", Type: "Display", Properties: map[string]any{"message": "done"}},
		},
	}
	flow, err := DecodeFlowDefinition(def)
	require.NoError(t, err)
	start := flow.Blocks["start"]
	assert.Equal(t, runtime.BlockConditional, start.Type)
	assert.Equal(t, "default", start.NextTrue)
	assert.Equal(t, "default", start.NextFalse)
}
