// Package signing 提供证明流水线所依赖的签名服务。
//
// 默认的 placeholder 方案只满足长度固定、确定性与内容敏感这三项行为约束，
// 并不安全；ed25519 与 secp256k1 是可以真正往返验证的独立方案。
package signing

import (
	"fmt"
	"sort"
	"strings"

	xerrors "QVeritas/internal/errors"
)

// CodeSigningFailure 表示密钥生成或签名失败。
const CodeSigningFailure xerrors.Code = "SIGNING_FAILURE"

func init() {
	xerrors.Register(CodeSigningFailure, xerrors.Attributes{
		Message:    "signing failed",
		Severity:   xerrors.SeverityCritical,
		HTTPStatus: 500,
	})
}

// 已支持的签名方案。
const (
	SchemePlaceholder = "placeholder"
	SchemeEd25519     = "ed25519"
	SchemeSecp256k1   = "secp256k1"
)

// KeyPair 是一次性使用的密钥对，调用方不得持久化或复用。
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

// Signer 定义签名服务。
type Signer interface {
	// Scheme 返回方案名称，会写入验证结果的元数据。
	Scheme() string
	// Secure 表示该方案是否提供真实的密码学保证。
	Secure() bool
	Keygen() (KeyPair, error)
	// Sign 对给定私钥是确定性的。
	Sign(message, privateKey []byte) ([]byte, error)
	Verify(message, signature, publicKey []byte) bool
}

var factories = map[string]func() Signer{
	SchemePlaceholder: func() Signer { return NewPlaceholder() },
	SchemeEd25519:     func() Signer { return NewEd25519() },
	SchemeSecp256k1:   func() Signer { return NewSecp256k1() },
}

// New 根据方案名称构造签名服务。
func New(scheme string) (Signer, error) {
	name := strings.ToLower(strings.TrimSpace(scheme))
	if name == "" {
		name = SchemePlaceholder
	}
	factory, ok := factories[name]
	if !ok {
		return nil, xerrors.New(xerrors.CodeConfiguration,
			fmt.Sprintf("unsupported signing scheme %q (supported: %s)", scheme, strings.Join(Schemes(), ", ")),
			xerrors.WithMetadata("scheme", scheme))
	}
	return factory(), nil
}

// Schemes 返回按字母排序的方案列表。
func Schemes() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkKeyLength(scheme string, key []byte, want int, kind string) error {
	if len(key) != want {
		return xerrors.New(CodeSigningFailure,
			fmt.Sprintf("%s %s key must be %d bytes, got %d", scheme, kind, want, len(key)),
			xerrors.WithMetadata("scheme", scheme))
	}
	return nil
}
