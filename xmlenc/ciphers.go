package xmlenc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidKeySize is returned when a key is not a valid AES key size
	ErrInvalidKeySize = errors.New("invalid key size: must be 16, 24, or 32 bytes")
	// ErrInvalidWrapInput is returned when key wrap input is too small or misaligned
	ErrInvalidWrapInput = errors.New("invalid key wrap input: must be >= 16 bytes and a multiple of 8")
	// ErrWrapIntegrity is returned when the RFC 3394 integrity check fails
	ErrWrapIntegrity = errors.New("key unwrap integrity check failed")
)

// RFC 3394 section 2.2.3.1 initial value.
const keyWrapIV = uint64(0xA6A6A6A6A6A6A6A6)

// AESKeyWrap wraps key material with a key encryption key per RFC 3394.
// The plaintext must be at least 16 bytes and a multiple of 8; the output
// is 8 bytes longer than the input.
func AESKeyWrap(kek, plaintext []byte) ([]byte, error) {
	block, err := newWrapCipher(kek)
	if err != nil {
		return nil, err
	}
	if len(plaintext) < 16 || len(plaintext)%8 != 0 {
		return nil, ErrInvalidWrapInput
	}

	n := len(plaintext) / 8
	a := keyWrapIV
	r := make([]uint64, n)
	for i := range r {
		r[i] = binary.BigEndian.Uint64(plaintext[i*8:])
	}

	// RFC 3394 section 2.2.1
	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint64(buf[:8], a)
			binary.BigEndian.PutUint64(buf[8:], r[i])
			block.Encrypt(buf, buf)
			a = binary.BigEndian.Uint64(buf[:8]) ^ uint64(n*j+i+1)
			r[i] = binary.BigEndian.Uint64(buf[8:])
		}
	}

	out := make([]byte, (n+1)*8)
	binary.BigEndian.PutUint64(out, a)
	for i, v := range r {
		binary.BigEndian.PutUint64(out[(i+1)*8:], v)
	}
	return out, nil
}

// AESKeyUnwrap reverses AESKeyWrap, verifying the RFC 3394 integrity value.
func AESKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	block, err := newWrapCipher(kek)
	if err != nil {
		return nil, err
	}
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return nil, ErrInvalidWrapInput
	}

	n := len(wrapped)/8 - 1
	a := binary.BigEndian.Uint64(wrapped)
	r := make([]uint64, n)
	for i := range r {
		r[i] = binary.BigEndian.Uint64(wrapped[(i+1)*8:])
	}

	// RFC 3394 section 2.2.2
	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n - 1; i >= 0; i-- {
			binary.BigEndian.PutUint64(buf[:8], a^uint64(n*j+i+1))
			binary.BigEndian.PutUint64(buf[8:], r[i])
			block.Decrypt(buf, buf)
			a = binary.BigEndian.Uint64(buf[:8])
			r[i] = binary.BigEndian.Uint64(buf[8:])
		}
	}

	if a != keyWrapIV {
		return nil, ErrWrapIntegrity
	}
	out := make([]byte, n*8)
	for i, v := range r {
		binary.BigEndian.PutUint64(out[i*8:], v)
	}
	return out, nil
}

func newWrapCipher(kek []byte) (cipher.Block, error) {
	switch len(kek) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return block, nil
}

// AESGCMEncrypt encrypts plaintext with AES-GCM. A random nonce is
// generated per call and prepended: nonce || ciphertext || tag.
func AESGCMEncrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// AESGCMDecrypt reverses AESGCMEncrypt.
func AESGCMDecrypt(key, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("GCM authentication failed: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// AESCBCEncrypt encrypts plaintext with AES-CBC and PKCS#7 padding.
// A random IV is generated per call and prepended to the ciphertext.
func AESCBCEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	bs := block.BlockSize()
	pad := bs - len(plaintext)%bs
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	out := make([]byte, bs+len(padded))
	if _, err := io.ReadFull(rand.Reader, out[:bs]); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	cipher.NewCBCEncrypter(block, out[:bs]).CryptBlocks(out[bs:], padded)
	return out, nil
}

// AESCBCDecrypt reverses AESCBCEncrypt.
func AESCBCDecrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	bs := block.BlockSize()
	if len(ciphertext) < 2*bs || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("invalid CBC ciphertext length %d", len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext)-bs)
	cipher.NewCBCDecrypter(block, ciphertext[:bs]).CryptBlocks(plaintext, ciphertext[bs:])

	pad := int(plaintext[len(plaintext)-1])
	if pad == 0 || pad > bs || pad > len(plaintext) {
		return nil, fmt.Errorf("invalid PKCS#7 padding")
	}
	for _, b := range plaintext[len(plaintext)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("invalid PKCS#7 padding")
		}
	}
	return plaintext[:len(plaintext)-pad], nil
}
