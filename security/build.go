package security

import (
	"github.com/paradisepdf/pagekit/ir/raw"
)

// ProtectedPermissions is the P value written by BuildAES128Encryption:
// every permission bit set.
const ProtectedPermissions int32 = -4

// Encryption bundles a freshly built Encrypt dictionary with a handler already
// authenticated for writing.
type Encryption struct {
	Dict    *raw.DictObj
	Handler Handler
}

// BuildAES128Encryption produces a Standard security handler, version 4
// revision 4, using AESV2 for both strings and streams. fileID is the first
// element of the trailer ID array.
func BuildAES128Encryption(userPwd, ownerPwd string, p int32, fileID []byte) (*Encryption, error) {
	return buildStandard([]byte(userPwd), []byte(ownerPwd), p, fileID, 4, 4, 128)
}

func buildStandard(userPwd, ownerPwd []byte, p int32, fileID []byte, v, r, bits int) (*Encryption, error) {
	if len(ownerPwd) == 0 {
		ownerPwd = userPwd
	}
	keyLen := bits / 8
	o := ownerEntry(ownerPwd, userPwd, keyLen, r)
	key := fileKey(userPwd, o, p, fileID, keyLen, r, true)
	u := userEntry(key, fileID, r)

	dict := raw.Dict()
	dict.Set("Filter", raw.NameLiteral("Standard"))
	dict.Set("V", raw.NumberInt(int64(v)))
	dict.Set("R", raw.NumberInt(int64(r)))
	dict.Set("Length", raw.NumberInt(int64(bits)))
	dict.Set("O", raw.HexStr(o))
	dict.Set("U", raw.HexStr(u))
	dict.Set("P", raw.NumberInt(int64(p)))
	if v == 4 {
		std := raw.Dict()
		std.Set("CFM", raw.NameLiteral("AESV2"))
		std.Set("AuthEvent", raw.NameLiteral("DocOpen"))
		std.Set("Length", raw.NumberInt(int64(keyLen)))
		cf := raw.Dict()
		cf.Set("StdCF", std)
		dict.Set("CF", cf)
		dict.Set("StmF", raw.NameLiteral("StdCF"))
		dict.Set("StrF", raw.NameLiteral("StdCF"))
	}

	h, err := (&HandlerBuilder{}).WithEncryptDict(dict).WithFileID(fileID).Build()
	if err != nil {
		return nil, err
	}
	if err := h.Authenticate(string(userPwd)); err != nil {
		return nil, err
	}
	return &Encryption{Dict: dict, Handler: h}, nil
}
