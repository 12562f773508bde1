package compute

import (
	"bytes"
	"context"
	"encoding/json"
)

type matrixPair struct {
	A [][]float64 `json:"a"`
	B [][]float64 `json:"b"`
}

type matrixPayload struct {
	Matrix [][]float64 `json:"matrix"`
}

type polynomialPayload struct {
	Coefficients []float64 `json:"coefficients"`
	X            *float64  `json:"x"`
}

// ComputePayload 将 JSON 载荷解码为运算参数后执行 SecureComputation：
//
//	matrix_multiply          {"a": [[...]], "b": [[...]]}
//	eigenvalue_decomposition {"matrix": [[...]]}
//	polynomial_evaluation    {"coefficients": [...], "x": 3}
func (e *Engine) ComputePayload(ctx context.Context, op string, payload []byte) (any, error) {
	if !Supported(op) {
		return nil, invalidOperation(op)
	}
	args, err := decodeArgs(op, payload)
	if err != nil {
		return nil, err
	}
	return e.SecureComputation(ctx, op, args...)
}

func decodeArgs(op string, payload []byte) ([]any, error) {
	decode := func(v any) error {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return invalidArgument(op, "payload is not valid JSON arguments: "+err.Error())
		}
		return nil
	}

	switch op {
	case OpMatrixMultiply:
		var p matrixPair
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.A == nil || p.B == nil {
			return nil, invalidArgument(op, `payload requires "a" and "b"`)
		}
		return []any{p.A, p.B}, nil
	case OpEigenvalueDecomposition:
		var p matrixPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.Matrix == nil {
			return nil, invalidArgument(op, `payload requires "matrix"`)
		}
		return []any{p.Matrix}, nil
	case OpPolynomialEvaluation:
		var p polynomialPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.Coefficients == nil || p.X == nil {
			return nil, invalidArgument(op, `payload requires "coefficients" and "x"`)
		}
		return []any{p.Coefficients, *p.X}, nil
	}
	return nil, invalidOperation(op)
}
