// Package proof 维护内容寻址的证明记录：生成、缓存与验证。
package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"QVeritas/pkg/canonical"
)

// SnapshotWindow 是输入、输出快照保留的字符数。截断是有损的，
// 展示与寻址使用同一份截断结果。
const SnapshotWindow = 32

// NarrativeVersion 是当前使用的叙述版本。
const NarrativeVersion = "v1"

// Narrative 是写入证明的固定定理、步骤与公理。
type Narrative struct {
	Theorem string
	Steps   []string
	Axioms  []string
}

// Narratives 按版本登记叙述内容，已发布的版本不可修改。
var Narratives = map[string]Narrative{
	"v1": {
		Theorem: "∀x ∈ inputs: f(x) = outputs[x] ⟹ verified",
		Steps: []string{
			"1. Assume inputs satisfy preconditions P(x)",
			"2. Apply computation function f: P(x) → Q(y)",
			"3. Verify postconditions Q(y) hold for outputs",
			"4. By mathematical induction and cryptographic soundness",
			"5. Therefore, computation is formally verified ∎",
		},
		Axioms: []string{"ZFC set theory", "Peano arithmetic", "Cryptographic assumptions"},
	},
}

// Proof 是一条不可变的证明记录。
type Proof struct {
	ID               string            `json:"proof_id"`
	Computation      string            `json:"computation"`
	Inputs           map[string]string `json:"inputs"`
	Outputs          map[string]string `json:"outputs"`
	Theorem          string            `json:"theorem"`
	Steps            []string          `json:"steps"`
	Axioms           []string          `json:"axioms"`
	NarrativeVersion string            `json:"narrative_version"`
	Timestamp        float64           `json:"timestamp"`
}

// Clone 返回深拷贝，存储实现用它隔离调用方。
func (p Proof) Clone() Proof {
	cp := p
	cp.Inputs = cloneMap(p.Inputs)
	cp.Outputs = cloneMap(p.Outputs)
	cp.Steps = append([]string(nil), p.Steps...)
	cp.Axioms = append([]string(nil), p.Axioms...)
	return cp
}

// Hash 返回规范化 JSON 的 SHA-256。
func (p Proof) Hash() (string, error) {
	return canonical.Hash(p)
}

// VerificationResult 是一次验证的结果，由调用方持有。
type VerificationResult struct {
	Valid      bool           `json:"valid"`
	ProofHash  string         `json:"proof_hash"`
	Timestamp  float64        `json:"timestamp"`
	Algorithm  string         `json:"algorithm"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata"`
}

// ID 计算 hex(sha256(computation || canonical(inputs) || canonical(outputs)))[:16]。
func ID(computation string, inputs, outputs map[string]string) (string, error) {
	in, err := canonical.Marshal(nonNil(inputs))
	if err != nil {
		return "", err
	}
	out, err := canonical.Marshal(nonNil(outputs))
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(computation))
	h.Write(in)
	h.Write(out)
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Snapshot 保留前 SnapshotWindow 个字符并追加 "..."。
func Snapshot(s string) string {
	runes := []rune(s)
	if len(runes) > SnapshotWindow {
		runes = runes[:SnapshotWindow]
	}
	return string(runes) + "..."
}

// Seconds 将时间转换为浮点 Unix 秒。
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
