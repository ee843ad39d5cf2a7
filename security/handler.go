// Package security implements the Standard security handler: RC4 and
// AES-128 decryption of loaded files and AES-128 encryption on write.
package security

import (
	"errors"
	"fmt"

	"github.com/paradisepdf/pagekit/ir/raw"
)

var (
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUnsupportedEncrypt = errors.New("unsupported encryption")
)

type Permissions struct {
	Print             bool
	Modify            bool
	Copy              bool
	ModifyAnnotations bool
	FillForms         bool
	ExtractAccessible bool
	Assemble          bool
	PrintHighQuality  bool
}

func AllPermissions() Permissions {
	return Permissions{true, true, true, true, true, true, true, true}
}

type permBit struct {
	bit  uint
	flag *bool
}

// bits maps each permission to its position in the P entry.
func (p *Permissions) bits() []permBit {
	return []permBit{
		{2, &p.Print}, {3, &p.Modify}, {4, &p.Copy}, {5, &p.ModifyAnnotations},
		{8, &p.FillForms}, {9, &p.ExtractAccessible}, {10, &p.Assemble}, {11, &p.PrintHighQuality},
	}
}

// PermissionsValue encodes p as a P entry. Unassigned high bits stay set.
func PermissionsValue(p Permissions) int32 {
	val := int32(-4)
	for _, b := range p.bits() {
		if !*b.flag {
			val &^= 1 << b.bit
		}
	}
	return val
}

// DataClass tells a handler what kind of payload it is transforming.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
	DataClassMetadataStream
)

type Handler interface {
	IsEncrypted() bool
	Authenticate(password string) error
	DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error)
	Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	Permissions() Permissions
	EncryptMetadata() bool
}

type HandlerBuilder struct {
	encryptDict *raw.DictObj
	trailer     *raw.DictObj
	fileID      []byte
}

func (b *HandlerBuilder) WithEncryptDict(d *raw.DictObj) *HandlerBuilder { b.encryptDict = d; return b }
func (b *HandlerBuilder) WithTrailer(d *raw.DictObj) *HandlerBuilder     { b.trailer = d; return b }
func (b *HandlerBuilder) WithFileID(id []byte) *HandlerBuilder           { b.fileID = id; return b }

// Build returns a pass-through handler when no Encrypt dictionary was
// given. The file ID falls back to the first trailer ID string.
func (b *HandlerBuilder) Build() (Handler, error) {
	if b.encryptDict == nil {
		return noEncryptionHandler{}, nil
	}
	h, err := parseStandard(b.encryptDict)
	if err != nil {
		return nil, err
	}
	h.fileID = b.fileID
	if len(h.fileID) == 0 {
		h.fileID = firstID(b.trailer)
	}
	return h, nil
}

func firstID(trailer *raw.DictObj) []byte {
	ids, ok := trailer.Array("ID")
	if !ok || ids.Len() == 0 {
		return nil
	}
	s, _ := ids.Items[0].(raw.StringObj)
	return s.Value()
}

type cryptAlgo int

const (
	algoNone cryptAlgo = iota
	algoRC4
	algoAES
)

type standardHandler struct {
	v, r        int
	keyLen      int
	owner, user []byte
	p           int32
	fileID      []byte
	encryptMeta bool

	streamAlgo cryptAlgo
	stringAlgo cryptAlgo
	filters    map[string]cryptAlgo

	key    []byte
	authed bool
}

// parseStandard accepts V 1, 2 and 4 up to revision 4 with 40 to 128 bit
// keys. Revision 5 and later (AES-256) are rejected.
func parseStandard(d *raw.DictObj) (*standardHandler, error) {
	if name, ok := d.Name("Filter"); ok && name != "Standard" {
		return nil, fmt.Errorf("%w: filter %s", ErrUnsupportedEncrypt, name)
	}
	v, _ := d.Int("V")
	if v == 0 {
		v = 1
	}
	r, ok := d.Int("R")
	if !ok {
		r = 2
	}
	switch {
	case v == 3 || v > 4:
		return nil, fmt.Errorf("%w: V=%d", ErrUnsupportedEncrypt, v)
	case r > 4:
		return nil, fmt.Errorf("%w: R=%d", ErrUnsupportedEncrypt, r)
	}
	bits := int64(40)
	if n, ok := d.Int("Length"); ok && n > 0 {
		bits = n
	}
	if v >= 4 {
		bits = max(bits, 128)
	}
	if bits%8 != 0 || bits < 40 || bits > 128 {
		return nil, fmt.Errorf("%w: key length %d", ErrUnsupportedEncrypt, bits)
	}

	h := &standardHandler{v: int(v), r: int(r), keyLen: int(bits / 8), encryptMeta: true}
	h.owner, _ = d.Str("O")
	h.user, _ = d.Str("U")
	p, _ := d.Int("P")
	h.p = int32(p)
	if o, ok := d.Get("EncryptMetadata"); ok {
		if b, ok := o.(raw.BoolObj); ok {
			h.encryptMeta = b.V
		}
	}

	base := algoRC4
	if v >= 4 {
		base = algoAES
	}
	var err error
	if h.filters, err = parseCryptFilters(d, base); err != nil {
		return nil, err
	}
	if v < 4 {
		h.streamAlgo, h.stringAlgo = base, base
		return h, nil
	}
	if h.streamAlgo, err = h.defaultFilter(d, "StmF"); err != nil {
		return nil, err
	}
	if h.stringAlgo, err = h.defaultFilter(d, "StrF"); err != nil {
		return nil, err
	}
	return h, nil
}

func parseCryptFilters(d *raw.DictObj, base cryptAlgo) (map[string]cryptAlgo, error) {
	out := make(map[string]cryptAlgo)
	cfObj, ok := d.Get("CF")
	if !ok {
		return out, nil
	}
	cf, ok := cfObj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("CF must be a dictionary")
	}
	for name, obj := range cf.KV {
		entry, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, fmt.Errorf("crypt filter %s is not a dictionary", name)
		}
		algo := base
		if cfm, ok := entry.Name("CFM"); ok {
			switch cfm {
			case "V2":
				algo = algoRC4
			case "AESV2":
				algo = algoAES
			case "None":
				algo = algoNone
			default:
				return nil, fmt.Errorf("%w: crypt filter method %s", ErrUnsupportedEncrypt, cfm)
			}
		}
		out[name] = algo
	}
	return out, nil
}

// defaultFilter resolves StmF or StrF. Absent entries mean Identity.
func (h *standardHandler) defaultFilter(d *raw.DictObj, key string) (cryptAlgo, error) {
	name, _ := d.Name(key)
	if name == "" || name == "Identity" {
		return algoNone, nil
	}
	if algo, ok := h.filters[name]; ok {
		return algo, nil
	}
	return algoNone, fmt.Errorf("crypt filter %s not defined", name)
}

func (h *standardHandler) IsEncrypted() bool     { return true }
func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }

func (h *standardHandler) Permissions() (p Permissions) {
	for _, b := range p.bits() {
		*b.flag = h.p&(1<<b.bit) != 0
	}
	return p
}

// Authenticate accepts either the user or the owner password.
func (h *standardHandler) Authenticate(password string) error {
	pwd := []byte(password)
	key, ok := h.tryUser(pwd)
	if !ok {
		if user, recovered := h.userFromOwner(pwd); recovered {
			key, ok = h.tryUser(user)
		}
	}
	if !ok {
		return ErrInvalidPassword
	}
	h.key, h.authed = key, true
	return nil
}

func (h *standardHandler) tryUser(pwd []byte) ([]byte, bool) {
	key := fileKey(pwd, h.owner, h.p, h.fileID, h.keyLen, h.r, h.encryptMeta)
	return key, userEntryMatches(key, h.user, h.fileID, h.r)
}

// userFromOwner opens the O entry with the owner password, which yields
// the padded user password.
func (h *standardHandler) userFromOwner(pwd []byte) ([]byte, bool) {
	if len(h.owner) < 32 {
		return nil, false
	}
	key := ownerRC4Key(pwd, h.keyLen, h.r)
	out := append([]byte(nil), h.owner[:32]...)
	if h.r == 2 {
		return rc4XOR(key, out), true
	}
	for i := 19; i >= 0; i-- {
		out = rc4XOR(keyXOR(key, byte(i)), out)
	}
	return out, true
}

func (h *standardHandler) algoFor(class DataClass, filter string) (cryptAlgo, error) {
	switch filter {
	case "Identity":
		return algoNone, nil
	case "", "Standard":
		switch {
		case class == DataClassString:
			return h.stringAlgo, nil
		case class == DataClassMetadataStream && !h.encryptMeta:
			return algoNone, nil
		}
		return h.streamAlgo, nil
	}
	if algo, ok := h.filters[filter]; ok {
		return algo, nil
	}
	return algoNone, fmt.Errorf("crypt filter %s not defined", filter)
}

func (h *standardHandler) apply(objNum, gen int, data []byte, class DataClass, filter string, encrypt bool) ([]byte, error) {
	if !h.authed {
		if err := h.Authenticate(""); err != nil {
			return nil, err
		}
	}
	algo, err := h.algoFor(class, filter)
	if err != nil {
		return nil, err
	}
	if algo == algoNone || (!encrypt && len(data) == 0) {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, algo == algoAES)
	switch {
	case algo == algoRC4:
		return rc4XOR(key, data), nil
	case encrypt:
		return aesEncrypt(key, data)
	}
	return aesDecrypt(key, data)
}

func (h *standardHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	return h.apply(objNum, gen, data, class, cryptFilter, false)
}

func (h *standardHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return h.apply(objNum, gen, data, class, "", false)
}

func (h *standardHandler) Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return h.apply(objNum, gen, data, class, "", true)
}

// NoopHandler returns the pass-through handler used for unencrypted files.
func NoopHandler() Handler { return noEncryptionHandler{} }

type noEncryptionHandler struct{}

func (noEncryptionHandler) IsEncrypted() bool         { return false }
func (noEncryptionHandler) Authenticate(string) error { return nil }
func (noEncryptionHandler) Permissions() Permissions  { return AllPermissions() }
func (noEncryptionHandler) EncryptMetadata() bool     { return false }

func (noEncryptionHandler) DecryptWithFilter(_, _ int, data []byte, _ DataClass, _ string) ([]byte, error) {
	return data, nil
}

func (noEncryptionHandler) Decrypt(_, _ int, data []byte, _ DataClass) ([]byte, error) {
	return data, nil
}

func (noEncryptionHandler) Encrypt(_, _ int, data []byte, _ DataClass) ([]byte, error) {
	return data, nil
}
