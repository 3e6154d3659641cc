// Command sealxml encrypts one element of an XML document with an X.509
// certificate, splicing the resulting xenc:EncryptedData back into the
// document in place of the plaintext.
//
// The certificate is given either directly as a PEM file (-cert) or as a
// thumbprint (-thumbprint) resolved through the store named in the YAML
// config (-store): a directory of PEM certificates, a PKCS#11 token, or
// both (the directory is tried first).
package main

import (
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/beevik/etree"
	"gopkg.in/yaml.v3"

	"github.com/leifj/certxmlenc"
	"github.com/leifj/certxmlenc/certstore"
	"github.com/leifj/certxmlenc/xmlenc"
)

type storeConfig struct {
	CertDir string `yaml:"cert_dir"`
	PKCS11  *struct {
		Module     string `yaml:"module"`
		TokenLabel string `yaml:"token_label"`
		PIN        string `yaml:"pin"`
	} `yaml:"pkcs11"`
}

func main() {
	var (
		inPath     = flag.String("in", "", "input XML document")
		outPath    = flag.String("out", "", "output path (default: stdout)")
		elemPath   = flag.String("element", "", "etree path of the element to encrypt (default: document root)")
		certPath   = flag.String("cert", "", "PEM certificate to encrypt with")
		thumbprint = flag.String("thumbprint", "", "thumbprint of the certificate to resolve from the store")
		storePath  = flag.String("store", "", "YAML store config (required with -thumbprint)")
		algorithm  = flag.String("alg", xmlenc.AlgorithmAES256GCM, "content encryption algorithm URI")
	)
	flag.Parse()

	if err := run(*inPath, *outPath, *elemPath, *certPath, *thumbprint, *storePath, *algorithm); err != nil {
		fmt.Fprintf(os.Stderr, "sealxml: %v\n", err)
		os.Exit(1)
	}
}

func run(inPath, outPath, elemPath, certPath, thumbprint, storePath, algorithm string) error {
	if inPath == "" {
		return fmt.Errorf("-in is required")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(inPath); err != nil {
		return fmt.Errorf("failed to read %s: %w", inPath, err)
	}

	target := doc.Root()
	if elemPath != "" {
		target = doc.FindElement(elemPath)
	}
	if target == nil {
		return fmt.Errorf("no element found at %q", elemPath)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	encryptor, closeStore, err := buildEncryptor(certPath, thumbprint, storePath,
		certxmlenc.WithAlgorithm(algorithm), certxmlenc.WithLogger(logger))
	if err != nil {
		return err
	}
	defer closeStore()

	info, err := encryptor.Encrypt(target)
	if err != nil {
		return err
	}

	if err := xmlenc.ReplaceElement(target, info.EncryptedData, false); err != nil {
		return err
	}

	if outPath == "" {
		_, err = doc.WriteTo(os.Stdout)
		return err
	}
	return doc.WriteToFile(outPath)
}

func buildEncryptor(certPath, thumbprint, storePath string, opts ...certxmlenc.Option) (*certxmlenc.Encryptor, func(), error) {
	noop := func() {}

	if certPath != "" {
		cert, err := loadCertificate(certPath)
		if err != nil {
			return nil, noop, err
		}
		enc, err := certxmlenc.NewEncryptor(cert, opts...)
		return enc, noop, err
	}

	if thumbprint == "" {
		return nil, noop, fmt.Errorf("either -cert or -thumbprint is required")
	}
	if storePath == "" {
		return nil, noop, fmt.Errorf("-store is required with -thumbprint")
	}

	data, err := os.ReadFile(storePath)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to read store config: %w", err)
	}
	var cfg storeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, noop, fmt.Errorf("failed to parse store config: %w", err)
	}

	var resolvers []certxmlenc.CertificateResolver
	closeStore := noop
	if cfg.CertDir != "" {
		resolvers = append(resolvers, certstore.NewDirResolver(cfg.CertDir))
	}
	if cfg.PKCS11 != nil {
		p11, err := certstore.NewPKCS11Resolver(certstore.PKCS11Config{
			ModulePath: cfg.PKCS11.Module,
			TokenLabel: cfg.PKCS11.TokenLabel,
			PIN:        cfg.PKCS11.PIN,
		})
		if err != nil {
			return nil, noop, err
		}
		resolvers = append(resolvers, p11)
		closeStore = func() { p11.Close() }
	}
	if len(resolvers) == 0 {
		return nil, noop, fmt.Errorf("store config names no certificate source")
	}

	enc, err := certxmlenc.NewResolvedEncryptor(thumbprint, chainResolver(resolvers), opts...)
	if err != nil {
		closeStore()
		return nil, noop, err
	}
	return enc, closeStore, nil
}

// chainResolver tries each resolver in order, returning the first match.
type chainResolver []certxmlenc.CertificateResolver

func (c chainResolver) ResolveCertificate(thumbprint string) (*x509.Certificate, error) {
	for _, r := range c {
		cert, err := r.ResolveCertificate(thumbprint)
		if err != nil {
			return nil, err
		}
		if cert != nil {
			return cert, nil
		}
	}
	return nil, nil
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no CERTIFICATE block in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}
