package xmlenc

import (
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// ToElement converts EncryptedData to an etree.Element with the xenc
// namespace declared on the element itself, so the result is a
// self-contained tree.
func (ed *EncryptedData) ToElement() *etree.Element {
	elem := etree.NewElement("xenc:EncryptedData")
	elem.CreateAttr("xmlns:xenc", NamespaceXMLEnc)

	if ed.ID != "" {
		elem.CreateAttr("Id", ed.ID)
	}
	if ed.Type != "" {
		elem.CreateAttr("Type", ed.Type)
	}
	if ed.EncryptionMethod != nil {
		ed.EncryptionMethod.appendTo(elem)
	}
	if ed.KeyInfo != nil {
		ed.KeyInfo.appendTo(elem)
	}
	if ed.CipherData != nil {
		ed.CipherData.appendTo(elem)
	}
	return elem
}

// ToElement converts EncryptedKey to an etree.Element.
func (ek *EncryptedKey) ToElement() *etree.Element {
	elem := etree.NewElement("xenc:EncryptedKey")
	elem.CreateAttr("xmlns:xenc", NamespaceXMLEnc)

	if ek.ID != "" {
		elem.CreateAttr("Id", ek.ID)
	}
	if ek.Recipient != "" {
		elem.CreateAttr("Recipient", ek.Recipient)
	}
	if ek.EncryptionMethod != nil {
		ek.EncryptionMethod.appendTo(elem)
	}
	if ek.KeyInfo != nil {
		ek.KeyInfo.appendTo(elem)
	}
	if ek.CipherData != nil {
		ek.CipherData.appendTo(elem)
	}
	return elem
}

func (em *EncryptionMethod) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("xenc:EncryptionMethod")
	elem.CreateAttr("Algorithm", em.Algorithm)

	if em.DigestMethod != "" {
		dm := elem.CreateElement("ds:DigestMethod")
		dm.CreateAttr("xmlns:ds", NamespaceXMLDSig)
		dm.CreateAttr("Algorithm", em.DigestMethod)
	}
	if em.MGF != "" {
		mgf := elem.CreateElement("xenc11:MGF")
		mgf.CreateAttr("xmlns:xenc11", NamespaceXMLEnc11)
		mgf.CreateAttr("Algorithm", em.MGF)
	}
}

func (cd *CipherData) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("xenc:CipherData")
	cv := elem.CreateElement("xenc:CipherValue")
	cv.SetText(base64.StdEncoding.EncodeToString(cd.CipherValue))
}

func (ki *KeyInfo) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("ds:KeyInfo")
	elem.CreateAttr("xmlns:ds", NamespaceXMLDSig)

	if ki.KeyName != "" {
		kn := elem.CreateElement("ds:KeyName")
		kn.SetText(ki.KeyName)
	}
	if ki.EncryptedKey != nil {
		elem.AddChild(ki.EncryptedKey.ToElement())
	}
	if ki.AgreementMethod != nil {
		ki.AgreementMethod.appendTo(elem)
	}
	if ki.X509Data != nil {
		ki.X509Data.appendTo(elem)
	}
}

func (xd *X509Data) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("ds:X509Data")
	if xd.IssuerSerial != nil {
		is := elem.CreateElement("ds:X509IssuerSerial")
		in := is.CreateElement("ds:X509IssuerName")
		in.SetText(xd.IssuerSerial.IssuerName)
		sn := is.CreateElement("ds:X509SerialNumber")
		sn.SetText(xd.IssuerSerial.SerialNumber)
	}
	if len(xd.Certificate) > 0 {
		cert := elem.CreateElement("ds:X509Certificate")
		cert.SetText(base64.StdEncoding.EncodeToString(xd.Certificate))
	}
}

func (am *AgreementMethod) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("xenc:AgreementMethod")
	elem.CreateAttr("Algorithm", am.Algorithm)

	if am.KeyDerivation != nil {
		am.KeyDerivation.appendTo(elem)
	}
	if am.OriginatorKey != nil {
		oki := elem.CreateElement("xenc:OriginatorKeyInfo")
		kv := oki.CreateElement("ds:KeyValue")
		kv.CreateAttr("xmlns:ds", NamespaceXMLDSig)
		ec := kv.CreateElement("dsig11:ECKeyValue")
		ec.CreateAttr("xmlns:dsig11", NamespaceXMLDSig11)
		nc := ec.CreateElement("dsig11:NamedCurve")
		nc.CreateAttr("URI", am.OriginatorKey.NamedCurve)
		pk := ec.CreateElement("dsig11:PublicKey")
		pk.SetText(base64.StdEncoding.EncodeToString(am.OriginatorKey.PublicKey))
	}
}

func (kd *KeyDerivation) appendTo(parent *etree.Element) {
	elem := parent.CreateElement("xenc11:KeyDerivationMethod")
	elem.CreateAttr("xmlns:xenc11", NamespaceXMLEnc11)
	elem.CreateAttr("Algorithm", kd.Algorithm)

	if kd.HKDF != nil {
		params := elem.CreateElement("xenc11:HKDFParams")
		if kd.HKDF.PRF != "" {
			prf := params.CreateElement("xenc11:PRF")
			prf.CreateAttr("Algorithm", kd.HKDF.PRF)
		}
		if len(kd.HKDF.Salt) > 0 {
			salt := params.CreateElement("xenc11:Salt")
			salt.SetText(base64.StdEncoding.EncodeToString(kd.HKDF.Salt))
		}
		if len(kd.HKDF.Info) > 0 {
			info := params.CreateElement("xenc11:Info")
			info.SetText(base64.StdEncoding.EncodeToString(kd.HKDF.Info))
		}
		if kd.HKDF.KeyLength > 0 {
			kl := params.CreateElement("xenc11:KeyLength")
			kl.SetText(fmt.Sprintf("%d", kd.HKDF.KeyLength))
		}
	}
}

// ParseEncryptedData parses an xenc:EncryptedData element.
func ParseEncryptedData(elem *etree.Element) (*EncryptedData, error) {
	if elem == nil {
		return nil, fmt.Errorf("nil element")
	}
	if elem.Tag != "EncryptedData" {
		return nil, fmt.Errorf("expected EncryptedData, got %s", elem.Tag)
	}

	ed := &EncryptedData{
		ID:   elem.SelectAttrValue("Id", ""),
		Type: elem.SelectAttrValue("Type", ""),
	}

	if emElem := elem.FindElement("./EncryptionMethod"); emElem != nil {
		ed.EncryptionMethod = parseEncryptionMethod(emElem)
	}
	if kiElem := elem.FindElement("./KeyInfo"); kiElem != nil {
		ki, err := parseKeyInfo(kiElem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse KeyInfo: %w", err)
		}
		ed.KeyInfo = ki
	}
	if cdElem := elem.FindElement("./CipherData"); cdElem != nil {
		cd, err := parseCipherData(cdElem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CipherData: %w", err)
		}
		ed.CipherData = cd
	}
	return ed, nil
}

// ParseEncryptedKey parses an xenc:EncryptedKey element.
func ParseEncryptedKey(elem *etree.Element) (*EncryptedKey, error) {
	if elem == nil {
		return nil, fmt.Errorf("nil element")
	}

	ek := &EncryptedKey{
		ID:        elem.SelectAttrValue("Id", ""),
		Recipient: elem.SelectAttrValue("Recipient", ""),
	}

	if emElem := elem.FindElement("./EncryptionMethod"); emElem != nil {
		ek.EncryptionMethod = parseEncryptionMethod(emElem)
	}
	if kiElem := elem.FindElement("./KeyInfo"); kiElem != nil {
		ki, err := parseKeyInfo(kiElem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse KeyInfo: %w", err)
		}
		ek.KeyInfo = ki
	}
	if cdElem := elem.FindElement("./CipherData"); cdElem != nil {
		cd, err := parseCipherData(cdElem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CipherData: %w", err)
		}
		ek.CipherData = cd
	}
	return ek, nil
}

func parseEncryptionMethod(elem *etree.Element) *EncryptionMethod {
	em := &EncryptionMethod{
		Algorithm: elem.SelectAttrValue("Algorithm", ""),
	}
	if dmElem := elem.FindElement("./DigestMethod"); dmElem != nil {
		em.DigestMethod = dmElem.SelectAttrValue("Algorithm", "")
	}
	if mgfElem := elem.FindElement("./MGF"); mgfElem != nil {
		em.MGF = mgfElem.SelectAttrValue("Algorithm", "")
	}
	return em
}

func parseCipherData(elem *etree.Element) (*CipherData, error) {
	cvElem := elem.FindElement("./CipherValue")
	if cvElem == nil {
		return nil, fmt.Errorf("CipherData without CipherValue")
	}
	value, err := base64.StdEncoding.DecodeString(cvElem.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to decode CipherValue: %w", err)
	}
	return &CipherData{CipherValue: value}, nil
}

func parseKeyInfo(elem *etree.Element) (*KeyInfo, error) {
	ki := &KeyInfo{}

	if knElem := elem.FindElement("./KeyName"); knElem != nil {
		ki.KeyName = knElem.Text()
	}
	if ekElem := elem.FindElement("./EncryptedKey"); ekElem != nil {
		ek, err := ParseEncryptedKey(ekElem)
		if err != nil {
			return nil, err
		}
		ki.EncryptedKey = ek
	}
	if amElem := elem.FindElement("./AgreementMethod"); amElem != nil {
		ki.AgreementMethod = parseAgreementMethod(amElem)
	}
	if xdElem := elem.FindElement("./X509Data"); xdElem != nil {
		xd, err := parseX509Data(xdElem)
		if err != nil {
			return nil, err
		}
		ki.X509Data = xd
	}
	return ki, nil
}

func parseX509Data(elem *etree.Element) (*X509Data, error) {
	xd := &X509Data{}
	if isElem := elem.FindElement("./X509IssuerSerial"); isElem != nil {
		xd.IssuerSerial = &X509IssuerSerial{}
		if inElem := isElem.FindElement("./X509IssuerName"); inElem != nil {
			xd.IssuerSerial.IssuerName = inElem.Text()
		}
		if snElem := isElem.FindElement("./X509SerialNumber"); snElem != nil {
			xd.IssuerSerial.SerialNumber = snElem.Text()
		}
	}
	if certElem := elem.FindElement("./X509Certificate"); certElem != nil {
		cert, err := base64.StdEncoding.DecodeString(certElem.Text())
		if err != nil {
			return nil, fmt.Errorf("failed to decode X509Certificate: %w", err)
		}
		xd.Certificate = cert
	}
	return xd, nil
}

func parseAgreementMethod(elem *etree.Element) *AgreementMethod {
	am := &AgreementMethod{
		Algorithm: elem.SelectAttrValue("Algorithm", ""),
	}

	if kdmElem := elem.FindElement("./KeyDerivationMethod"); kdmElem != nil {
		am.KeyDerivation = parseKeyDerivation(kdmElem)
	}
	if ecElem := elem.FindElement("./OriginatorKeyInfo/KeyValue/ECKeyValue"); ecElem != nil {
		ec := &ECKeyValue{}
		if ncElem := ecElem.FindElement("./NamedCurve"); ncElem != nil {
			ec.NamedCurve = ncElem.SelectAttrValue("URI", "")
		}
		if pkElem := ecElem.FindElement("./PublicKey"); pkElem != nil {
			ec.PublicKey, _ = base64.StdEncoding.DecodeString(pkElem.Text())
		}
		am.OriginatorKey = ec
	}
	return am
}

func parseKeyDerivation(elem *etree.Element) *KeyDerivation {
	kd := &KeyDerivation{
		Algorithm: elem.SelectAttrValue("Algorithm", ""),
	}
	if paramsElem := elem.FindElement("./HKDFParams"); paramsElem != nil {
		kd.HKDF = &HKDFParams{}
		if prfElem := paramsElem.FindElement("./PRF"); prfElem != nil {
			kd.HKDF.PRF = prfElem.SelectAttrValue("Algorithm", "")
		}
		if saltElem := paramsElem.FindElement("./Salt"); saltElem != nil {
			kd.HKDF.Salt, _ = base64.StdEncoding.DecodeString(saltElem.Text())
		}
		if infoElem := paramsElem.FindElement("./Info"); infoElem != nil {
			kd.HKDF.Info, _ = base64.StdEncoding.DecodeString(infoElem.Text())
		}
		if klElem := paramsElem.FindElement("./KeyLength"); klElem != nil {
			fmt.Sscanf(klElem.Text(), "%d", &kd.HKDF.KeyLength)
		}
	}
	return kd
}
