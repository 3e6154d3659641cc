package xmlenc

import (
	"crypto/rand"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// KeyWrapper wraps content encryption keys for a recipient.
type KeyWrapper interface {
	WrapKey(cek []byte, wrapAlgorithm string) (*EncryptedKey, error)
}

// KeyUnwrapper recovers content encryption keys from an EncryptedKey.
type KeyUnwrapper interface {
	UnwrapKey(ek *EncryptedKey) ([]byte, error)
}

// Encryptor produces EncryptedData structures. Each call generates a
// fresh content encryption key; nothing is cached between calls.
type Encryptor struct {
	// Algorithm is the content encryption algorithm (e.g. AlgorithmAES256GCM)
	Algorithm string
	// KeyWrapper wraps the per-call content encryption key
	KeyWrapper KeyWrapper

	canonicalizer dsig.Canonicalizer
}

// NewEncryptor creates an Encryptor using Canonical XML 1.0 to serialize
// plaintext elements before encryption.
func NewEncryptor(algorithm string, keyWrapper KeyWrapper) *Encryptor {
	return &Encryptor{
		Algorithm:     algorithm,
		KeyWrapper:    keyWrapper,
		canonicalizer: dsig.MakeC14N10RecCanonicalizer(),
	}
}

// EncryptElement encrypts a whole element, producing an EncryptedData of
// Type Element.
func (e *Encryptor) EncryptElement(elem *etree.Element) (*EncryptedData, error) {
	if elem == nil {
		return nil, fmt.Errorf("nil element")
	}

	keySize := KeySize(e.Algorithm)
	if keySize == 0 {
		return nil, fmt.Errorf("unsupported encryption algorithm: %s", e.Algorithm)
	}
	if e.KeyWrapper == nil {
		return nil, fmt.Errorf("no key wrapper configured")
	}

	plaintext, err := e.canonicalizer.Canonicalize(elem)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize element: %w", err)
	}

	cek := make([]byte, keySize)
	if _, err := rand.Read(cek); err != nil {
		return nil, fmt.Errorf("failed to generate content encryption key: %w", err)
	}

	var ciphertext []byte
	if IsGCM(e.Algorithm) {
		ciphertext, err = AESGCMEncrypt(cek, plaintext)
	} else {
		ciphertext, err = AESCBCEncrypt(cek, plaintext)
	}
	if err != nil {
		return nil, fmt.Errorf("content encryption failed: %w", err)
	}

	encKey, err := e.KeyWrapper.WrapKey(cek, KeyWrapForContent(e.Algorithm))
	if err != nil {
		return nil, fmt.Errorf("key wrapping failed: %w", err)
	}

	return &EncryptedData{
		Type:             TypeElement,
		EncryptionMethod: &EncryptionMethod{Algorithm: e.Algorithm},
		KeyInfo:          &KeyInfo{EncryptedKey: encKey},
		CipherData:       &CipherData{CipherValue: ciphertext},
	}, nil
}

// Decryptor reverses Encryptor output given a key unwrapper holding the
// recipient's private key material.
type Decryptor struct {
	KeyUnwrapper KeyUnwrapper
}

// NewDecryptor creates a Decryptor.
func NewDecryptor(keyUnwrapper KeyUnwrapper) *Decryptor {
	return &Decryptor{KeyUnwrapper: keyUnwrapper}
}

// Decrypt recovers the plaintext bytes of an EncryptedData.
func (d *Decryptor) Decrypt(ed *EncryptedData) ([]byte, error) {
	if ed.CipherData == nil || len(ed.CipherData.CipherValue) == 0 {
		return nil, fmt.Errorf("no cipher data")
	}
	if ed.KeyInfo == nil || ed.KeyInfo.EncryptedKey == nil {
		return nil, fmt.Errorf("no key information available")
	}
	if d.KeyUnwrapper == nil {
		return nil, fmt.Errorf("no key unwrapper configured")
	}

	cek, err := d.KeyUnwrapper.UnwrapKey(ed.KeyInfo.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("key unwrapping failed: %w", err)
	}

	algorithm := ""
	if ed.EncryptionMethod != nil {
		algorithm = ed.EncryptionMethod.Algorithm
	}
	var plaintext []byte
	if IsGCM(algorithm) {
		plaintext, err = AESGCMDecrypt(cek, ed.CipherData.CipherValue)
	} else {
		plaintext, err = AESCBCDecrypt(cek, ed.CipherData.CipherValue)
	}
	if err != nil {
		return nil, fmt.Errorf("content decryption failed: %w", err)
	}
	return plaintext, nil
}

// DecryptElement recovers the plaintext element of an EncryptedData.
func (d *Decryptor) DecryptElement(ed *EncryptedData) (*etree.Element, error) {
	plaintext, err := d.Decrypt(ed)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(plaintext); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("decrypted XML has no root element")
	}
	return root, nil
}

// ReplaceElement splices a replacement element into the position of the
// original within its parent. With contentOnly false the original element
// is replaced entirely; with contentOnly true the original element is kept
// and its children are replaced by the replacement.
func ReplaceElement(original, replacement *etree.Element, contentOnly bool) error {
	if original == nil || replacement == nil {
		return fmt.Errorf("nil element")
	}

	if contentOnly {
		for _, child := range original.ChildElements() {
			original.RemoveChild(child)
		}
		original.AddChild(replacement)
		return nil
	}

	parent := original.Parent()
	if parent == nil {
		return fmt.Errorf("element has no parent")
	}
	index := original.Index()
	parent.RemoveChild(original)
	parent.InsertChildAt(index, replacement)
	return nil
}
