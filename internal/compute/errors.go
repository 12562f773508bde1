package compute

import (
	xerrors "QVeritas/internal/errors"
)

// 计算引擎的错误码，均不可重试。
const (
	CodeInvalidOperation  xerrors.Code = "INVALID_OPERATION"
	CodeDimensionMismatch xerrors.Code = "DIMENSION_MISMATCH"
	CodeNumericalError    xerrors.Code = "NUMERICAL_ERROR"
)

func init() {
	xerrors.Register(CodeInvalidOperation, xerrors.Attributes{
		Message:    "unsupported computation operation",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: 400,
	})
	xerrors.Register(CodeDimensionMismatch, xerrors.Attributes{
		Message:    "matrix dimensions do not match",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: 422,
	})
	xerrors.Register(CodeNumericalError, xerrors.Attributes{
		Message:    "numerical computation failed",
		Severity:   xerrors.SeverityWarning,
		HTTPStatus: 422,
	})
}

func invalidOperation(op string) error {
	return xerrors.New(CodeInvalidOperation, "unknown operation: "+op,
		xerrors.WithMetadata("operation", op))
}

func invalidArgument(op, message string) error {
	return xerrors.New(xerrors.CodeInvalidArgument, op+": "+message,
		xerrors.WithMetadata("operation", op))
}

func dimensionMismatch(op, message string) error {
	return xerrors.New(CodeDimensionMismatch, op+": "+message,
		xerrors.WithMetadata("operation", op))
}

func numericalError(op, message string) error {
	return xerrors.New(CodeNumericalError, op+": "+message,
		xerrors.WithMetadata("operation", op))
}
