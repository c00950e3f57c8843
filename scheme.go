package rsakeys

import "io"

// An EncryptionScheme formats messages for the raw RSA operations on a
// key pair. Key types depend only on this interface, never on concrete
// scheme implementations.
//
// For Decrypt, a nil random reader disables blinding of the private
// operation; callers whose decryption timing is externally observable
// should always pass one.
type EncryptionScheme interface {
	Encrypt(random io.Reader, pub *PublicKey, msg []byte) ([]byte, error)
	Decrypt(random io.Reader, priv *PrivateKey, ciphertext []byte) ([]byte, error)
}

// A SignatureScheme formats digests for the raw RSA operations on a key
// pair. digest must be the result of hashing the message with the
// scheme's hash function.
//
// For Sign, a nil random reader disables blinding of the private
// operation.
type SignatureScheme interface {
	Sign(random io.Reader, priv *PrivateKey, digest []byte) ([]byte, error)
	Verify(pub *PublicKey, digest, sig []byte) error
}
