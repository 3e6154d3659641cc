package certxmlenc

import (
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"

	"github.com/beevik/etree"

	"github.com/leifj/certxmlenc/xmlenc"
)

// DecryptorType identifies the component able to reverse an Encryptor's
// output using the certificate's private key. It is carried in every
// EncryptedXMLInfo so a key ring can route stored elements to the right
// decryptor without inspecting their contents.
const DecryptorType = "github.com/leifj/certxmlenc/xmlenc.Decryptor"

// syntheticRoot is a throwaway wrapper element. Encrypting the sole child
// of a fresh root sidesteps the primitive's handling of whole-document
// root elements; the wrapper never appears in the output.
const syntheticRoot = "root"

// EncryptionStep performs the certificate lookup and encryption for one
// element of a working document. The Encryptor implements it itself by
// default; tests may substitute an alternate implementation via
// WithEncryptionStep.
type EncryptionStep interface {
	PerformEncryption(doc *etree.Document, elem *etree.Element) (*etree.Element, error)
}

// EncryptedXMLInfo pairs an encrypted element with the identifier of the
// decryption capability that can reverse it. A new value is created per
// Encrypt call; no state is shared with the Encryptor.
type EncryptedXMLInfo struct {
	// EncryptedData is a standalone xenc:EncryptedData element tree
	EncryptedData *etree.Element
	// DecryptorType names the paired decryption capability
	DecryptorType string
}

// Encryptor encrypts XML elements with a certificate's public key. It is
// safe for concurrent use provided any underlying resolver is.
type Encryptor struct {
	binding   *certificateBinding
	algorithm string
	logger    *slog.Logger
	step      EncryptionStep
}

// Option configures an Encryptor.
type Option func(*Encryptor)

// WithLogger sets the logger. The default discards all records.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encryptor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEncryptionStep substitutes the encryption step. When set, the
// Encryptor delegates to it instead of performing certificate resolution
// and encryption itself.
func WithEncryptionStep(step EncryptionStep) Option {
	return func(e *Encryptor) { e.step = step }
}

// WithAlgorithm sets the content encryption algorithm. The default is
// AES-256-GCM.
func WithAlgorithm(algorithm string) Option {
	return func(e *Encryptor) { e.algorithm = algorithm }
}

// NewEncryptor creates an Encryptor bound directly to a certificate.
// Every Encrypt call uses exactly this certificate.
func NewEncryptor(cert *x509.Certificate, opts ...Option) (*Encryptor, error) {
	binding, err := newDirectBinding(cert)
	if err != nil {
		return nil, err
	}
	return newEncryptor(binding, opts), nil
}

// NewResolvedEncryptor creates an Encryptor that resolves its certificate
// by thumbprint on every Encrypt call. Resolution is not cached: if the
// resolver's backing store changes between calls, later calls use the new
// certificate.
func NewResolvedEncryptor(thumbprint string, resolver CertificateResolver, opts ...Option) (*Encryptor, error) {
	binding, err := newLazyBinding(thumbprint, resolver)
	if err != nil {
		return nil, err
	}
	return newEncryptor(binding, opts), nil
}

func newEncryptor(binding *certificateBinding, opts []Option) *Encryptor {
	e := &Encryptor{
		binding:   binding,
		algorithm: xmlenc.AlgorithmAES256GCM,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encrypt encrypts the plaintext element and returns it as an
// EncryptedXMLInfo. The input element is not modified; encryption runs on
// a copy inside a synthetic working document. Failures from the resolver
// or the encryption primitive are logged and returned unmodified.
func (e *Encryptor) Encrypt(plaintext *etree.Element) (*EncryptedXMLInfo, error) {
	if plaintext == nil {
		return nil, fmt.Errorf("%w: plaintext element must not be nil", ErrInvalidArgument)
	}

	// Work on a wrapped copy so a document root element encrypts the
	// same as any other element, and the caller's tree stays untouched.
	doc := etree.NewDocument()
	wrapper := doc.CreateElement(syntheticRoot)
	wrapper.AddChild(plaintext.Copy())
	target := wrapper.ChildElements()[0]

	var encrypted *etree.Element
	var err error
	if e.step != nil {
		encrypted, err = e.step.PerformEncryption(doc, target)
	} else {
		encrypted, err = e.performEncryption(target)
	}
	if err != nil {
		return nil, err
	}
	if encrypted == nil {
		return nil, fmt.Errorf("encryption step returned no element")
	}

	if err := xmlenc.ReplaceElement(target, encrypted, false); err != nil {
		return nil, err
	}

	// Strip the synthetic root: detach the encrypted element so it
	// stands alone.
	result := wrapper.ChildElements()[0]
	wrapper.RemoveChild(result)

	return &EncryptedXMLInfo{
		EncryptedData: result,
		DecryptorType: DecryptorType,
	}, nil
}

// performEncryption is the default EncryptionStep: resolve the bound
// certificate, encrypt the element with its public key, and return the
// EncryptedData element.
func (e *Encryptor) performEncryption(elem *etree.Element) (*etree.Element, error) {
	cert, err := e.binding.certificate(e.logger)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		// The binding contract guarantees a certificate or an error;
		// reaching this point is a programming error in the binding.
		panic("certxmlenc: certificate binding yielded no certificate and no error")
	}

	thumbprint := Thumbprint(cert)
	e.logger.Debug("encrypting to certificate", "thumbprint", thumbprint)

	transport, err := xmlenc.NewCertificateKeyTransport(cert)
	if err != nil {
		e.logger.Error("certificate unusable for encryption",
			"thumbprint", thumbprint, "error", err)
		return nil, err
	}

	ed, err := xmlenc.NewEncryptor(e.algorithm, transport).EncryptElement(elem)
	if err != nil {
		e.logger.Error("encryption failed",
			"thumbprint", thumbprint, "error", err)
		return nil, err
	}
	return ed.ToElement(), nil
}
