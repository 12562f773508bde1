package signing

import (
	"crypto/ed25519"
	"crypto/rand"

	xerrors "QVeritas/internal/errors"
)

// Ed25519 使用标准库 ed25519 实现签名与验证。
type Ed25519 struct{}

// NewEd25519 返回 ed25519 签名方案。
func NewEd25519() *Ed25519 { return &Ed25519{} }

func (*Ed25519) Scheme() string { return SchemeEd25519 }

func (*Ed25519) Secure() bool { return true }

func (*Ed25519) Keygen() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, xerrors.Wrap(CodeSigningFailure, err, "generate ed25519 key")
	}
	return KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

func (*Ed25519) Sign(message, privateKey []byte) ([]byte, error) {
	if err := checkKeyLength(SchemeEd25519, privateKey, ed25519.PrivateKeySize, "private"); err != nil {
		return nil, err
	}
	return ed25519.Sign(ed25519.PrivateKey(privateKey), message), nil
}

func (*Ed25519) Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
