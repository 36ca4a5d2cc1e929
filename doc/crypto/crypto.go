// Package crypto identifies how an encrypted Word document was protected.
// Decryption is not supported; the method is reported so callers can
// explain why a document cannot be read.
package crypto

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

// Algorithms named as in MS-OFFCRYPTO:
// https://docs.microsoft.com/en-us/openspecs/office_file_formats/ms-offcrypto/3c34d72a-1a61-4b52-a893-196f9157f083

// Method is the document protection scheme.
type Method int

const (
	None Method = iota
	// XOR obfuscation, 2.3.7
	XOR
	// RC4 encryption, 2.3.6
	RC4
	// RC4 CryptoAPI encryption, 2.3.5
	RC4CryptoAPI
	// Unknown is an encrypted document with an unrecognized header.
	Unknown
)

func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case XOR:
		return "XOR obfuscation"
	case RC4:
		return "RC4"
	case RC4CryptoAPI:
		return "RC4 CryptoAPI"
	}
	return "unknown"
}

// 2.3.6.1
type basicRC4Header struct {
	MajorVersion uint16
	MinorVersion uint16
	Salt         [16]byte
	Verifier     [16]byte
	VerifierHash [16]byte
}

// Info describes the protection of a document.
type Info struct {
	Method       Method
	MajorVersion uint16
	MinorVersion uint16

	// Salt is set for RC4 encryption.
	Salt []byte
	// Key is the XOR verifier or the EncryptionHeader size from the FIB.
	Key uint32
}

func (i Info) String() string {
	if i.Method == None || i.Method == XOR {
		return i.Method.String()
	}
	return fmt.Sprintf("%s (version %d.%d)", i.Method, i.MajorVersion, i.MinorVersion)
}

// Detect inspects the EncryptionHeader at the start of the table stream.
// obfuscated and key are the FIB's fObfuscated bit and lKey.
func Detect(tableStream []byte, obfuscated bool, key uint32) (Info, error) {
	info := Info{Key: key}
	if obfuscated {
		info.Method = XOR
		return info, nil
	}
	if len(tableStream) < 4 {
		return info, fmt.Errorf("crypto: table stream too short for an encryption header (%d bytes)", len(tableStream))
	}
	info.MajorVersion = binary.LittleEndian.Uint16(tableStream)
	info.MinorVersion = binary.LittleEndian.Uint16(tableStream[2:])

	switch {
	case info.MajorVersion == 1 && info.MinorVersion == 1:
		info.Method = RC4
		h := basicRC4Header{}
		if len(tableStream) < 52 {
			return info, fmt.Errorf("crypto: RC4 header is invalid (expected 52 bytes, got %d)", len(tableStream))
		}
		if err := restruct.Unpack(tableStream[:52], binary.LittleEndian, &h); err != nil {
			return info, err
		}
		info.Salt = append([]byte(nil), h.Salt[:]...)
	case (info.MajorVersion == 2 || info.MajorVersion == 3 || info.MajorVersion == 4) && info.MinorVersion == 2:
		info.Method = RC4CryptoAPI
	default:
		info.Method = Unknown
	}
	return info, nil
}
