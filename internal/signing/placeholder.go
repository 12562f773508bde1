package signing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	xerrors "QVeritas/internal/errors"
)

// PlaceholderKeySize 是 placeholder 方案的私钥、公钥与签名长度。
const PlaceholderKeySize = sha256.Size

// Placeholder 是基于 SHA-256 的占位签名方案，不安全。
//
//	public    = sha256(private)
//	signature = sha256(private || message)
//
// Verify 按 sha256(sha256(public) || message) 重算并比较，这一公式无法
// 重建私钥，因此不会接受任何由 Sign 生成的真实签名。
type Placeholder struct{}

// NewPlaceholder 返回占位签名方案。
func NewPlaceholder() *Placeholder { return &Placeholder{} }

func (*Placeholder) Scheme() string { return SchemePlaceholder }

func (*Placeholder) Secure() bool { return false }

func (*Placeholder) Keygen() (KeyPair, error) {
	priv := make([]byte, PlaceholderKeySize)
	if _, err := rand.Read(priv); err != nil {
		return KeyPair{}, xerrors.Wrap(CodeSigningFailure, err, "generate placeholder key")
	}
	pub := sha256.Sum256(priv)
	return KeyPair{PrivateKey: priv, PublicKey: pub[:]}, nil
}

func (*Placeholder) Sign(message, privateKey []byte) ([]byte, error) {
	if err := checkKeyLength(SchemePlaceholder, privateKey, PlaceholderKeySize, "private"); err != nil {
		return nil, err
	}
	return digest(privateKey, message), nil
}

func (*Placeholder) Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != PlaceholderKeySize || len(signature) != PlaceholderKeySize {
		return false
	}
	derived := sha256.Sum256(publicKey)
	expected := digest(derived[:], message)
	return subtle.ConstantTimeCompare(expected, signature) == 1
}

func digest(key, message []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(message)
	return h.Sum(nil)
}
