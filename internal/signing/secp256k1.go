package signing

import (
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "QVeritas/internal/errors"
)

// secp256k1 签名长度（去掉恢复位后的 R || S）。
const secp256k1SignatureSize = 64

// Secp256k1 使用 go-ethereum 的 secp256k1 实现，消息先做 Keccak-256 摘要。
// 公钥以 33 字节压缩格式输出。
type Secp256k1 struct{}

// NewSecp256k1 返回 secp256k1 签名方案。
func NewSecp256k1() *Secp256k1 { return &Secp256k1{} }

func (*Secp256k1) Scheme() string { return SchemeSecp256k1 }

func (*Secp256k1) Secure() bool { return true }

func (*Secp256k1) Keygen() (KeyPair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return KeyPair{}, xerrors.Wrap(CodeSigningFailure, err, "generate secp256k1 key")
	}
	return KeyPair{
		PrivateKey: crypto.FromECDSA(key),
		PublicKey:  crypto.CompressPubkey(&key.PublicKey),
	}, nil
}

func (*Secp256k1) Sign(message, privateKey []byte) ([]byte, error) {
	if err := checkKeyLength(SchemeSecp256k1, privateKey, 32, "private"); err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, xerrors.Wrap(CodeSigningFailure, err, "decode secp256k1 key")
	}
	sig, err := crypto.Sign(crypto.Keccak256(message), key)
	if err != nil {
		return nil, xerrors.Wrap(CodeSigningFailure, err, "secp256k1 sign")
	}
	return sig[:secp256k1SignatureSize], nil
}

func (*Secp256k1) Verify(message, signature, publicKey []byte) bool {
	if len(signature) != secp256k1SignatureSize || len(publicKey) == 0 {
		return false
	}
	return crypto.VerifySignature(publicKey, crypto.Keccak256(message), signature)
}
