package compute

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// 支持的计算操作。
const (
	OpMatrixMultiply          = "matrix_multiply"
	OpEigenvalueDecomposition = "eigenvalue_decomposition"
	OpPolynomialEvaluation    = "polynomial_evaluation"
)

// Operations 返回全部支持的操作名称。
func Operations() []string {
	return []string{OpMatrixMultiply, OpEigenvalueDecomposition, OpPolynomialEvaluation}
}

// Supported 判断操作是否受支持。
func Supported(op string) bool {
	switch op {
	case OpMatrixMultiply, OpEigenvalueDecomposition, OpPolynomialEvaluation:
		return true
	}
	return false
}

// Complex 以 {re, im} 形式携带复数，便于 JSON 序列化。
type Complex struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

func (c Complex) String() string {
	if c.Im == 0 {
		return fmt.Sprint(c.Re)
	}
	return fmt.Sprintf("(%v%+vi)", c.Re, c.Im)
}

// EigenResult 是特征分解结果，Vectors 的第 j 列对应 Values[j]（右特征向量）。
type EigenResult struct {
	Values  []Complex   `json:"values"`
	Vectors [][]Complex `json:"vectors"`
}

func (r EigenResult) String() string {
	return fmt.Sprintf("(%v, %v)", r.Values, r.Vectors)
}

func toDense(op, name string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, dimensionMismatch(op, name+" must be a non-empty matrix")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, dimensionMismatch(op, fmt.Sprintf("%s row %d has %d columns, expected %d", name, i, len(row), cols))
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func fromDense(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func matrixMultiply(a, b [][]float64) ([][]float64, error) {
	ma, err := toDense(OpMatrixMultiply, "left operand", a)
	if err != nil {
		return nil, err
	}
	mb, err := toDense(OpMatrixMultiply, "right operand", b)
	if err != nil {
		return nil, err
	}
	ar, ac := ma.Dims()
	br, bc := mb.Dims()
	if ac != br {
		return nil, dimensionMismatch(OpMatrixMultiply, fmt.Sprintf("cannot multiply %dx%d by %dx%d", ar, ac, br, bc))
	}
	var product mat.Dense
	product.Mul(ma, mb)
	return fromDense(&product), nil
}

func eigenDecomposition(a [][]float64) (result EigenResult, err error) {
	m, err := toDense(OpEigenvalueDecomposition, "matrix", a)
	if err != nil {
		return EigenResult{}, err
	}
	r, c := m.Dims()
	if r != c {
		return EigenResult{}, dimensionMismatch(OpEigenvalueDecomposition, fmt.Sprintf("matrix must be square, got %dx%d", r, c))
	}
	for _, row := range a {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return EigenResult{}, numericalError(OpEigenvalueDecomposition, "matrix contains non-finite values")
			}
		}
	}

	defer func() {
		if p := recover(); p != nil {
			result = EigenResult{}
			err = numericalError(OpEigenvalueDecomposition, fmt.Sprint(p))
		}
	}()

	var eig mat.Eigen
	if ok := eig.Factorize(m, mat.EigenRight); !ok {
		return EigenResult{}, numericalError(OpEigenvalueDecomposition, "factorization did not converge")
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	result.Values = make([]Complex, len(values))
	for i, v := range values {
		result.Values[i] = Complex{Re: real(v), Im: imag(v)}
	}
	result.Vectors = make([][]Complex, r)
	for i := 0; i < r; i++ {
		result.Vectors[i] = make([]Complex, r)
		for j := 0; j < r; j++ {
			v := vectors.At(i, j)
			result.Vectors[i][j] = Complex{Re: real(v), Im: imag(v)}
		}
	}
	return result, nil
}

// polynomialEvaluation 计算 Σ coeffs[i]·x^i，系数按升幂排列。
func polynomialEvaluation(coeffs []float64, x float64) float64 {
	var sum float64
	for i := len(coeffs) - 1; i >= 0; i-- {
		sum = sum*x + coeffs[i]
	}
	return sum
}
