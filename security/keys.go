package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"encoding/binary"
	"errors"
)

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

var (
	errShortCiphertext = errors.New("aes ciphertext shorter than one block")
	errPartialBlock    = errors.New("aes ciphertext is not a whole number of blocks")
	errBadPadding      = errors.New("invalid aes padding")
)

// padPassword truncates or pads pwd to exactly 32 bytes.
func padPassword(pwd []byte) []byte {
	out := make([]byte, 32)
	copy(out[copy(out, pwd):], passwordPadding)
	return out
}

// fileKey computes the document key from a user password. n is the key
// length in bytes, clamped to 5..16.
func fileKey(pwd, owner []byte, p int32, fileID []byte, n, r int, encryptMeta bool) []byte {
	n = min(max(n, 5), 16)
	h := md5.New()
	h.Write(padPassword(pwd))
	h.Write(owner)
	binary.Write(h, binary.LittleEndian, uint32(p))
	h.Write(fileID)
	if r >= 4 && !encryptMeta {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	key := h.Sum(nil)
	if r >= 3 {
		for j := 0; j < 50; j++ {
			sum := md5.Sum(key[:n])
			key = sum[:]
		}
	}
	return bytes.Clone(key[:n])
}

// ownerRC4Key is the key that seals and opens the O entry. Revision 2
// always uses 40 bits.
func ownerRC4Key(ownerPwd []byte, n, r int) []byte {
	if r == 2 {
		n = 5
	}
	sum := md5.Sum(padPassword(ownerPwd))
	if r >= 3 {
		for j := 0; j < 50; j++ {
			sum = md5.Sum(sum[:])
		}
	}
	return bytes.Clone(sum[:n])
}

// ownerEntry computes O: the padded user password sealed under the owner
// key, re-sealed 19 more times with varied keys from revision 3 on.
func ownerEntry(ownerPwd, userPwd []byte, n, r int) []byte {
	key := ownerRC4Key(ownerPwd, n, r)
	out := rc4XOR(key, padPassword(userPwd))
	if r >= 3 {
		for i := 1; i <= 19; i++ {
			out = rc4XOR(keyXOR(key, byte(i)), out)
		}
	}
	return out
}

// userEntry computes U for a document key. From revision 3 on only the
// first 16 bytes are significant; the rest is zero filled.
func userEntry(key, fileID []byte, r int) []byte {
	if r == 2 {
		return rc4XOR(key, passwordPadding)
	}
	sum := md5.Sum(append(bytes.Clone(passwordPadding), fileID...))
	out := sum[:]
	for i := 0; i < 20; i++ {
		out = rc4XOR(keyXOR(key, byte(i)), out)
	}
	return append(out, make([]byte, 16)...)
}

func userEntryMatches(key, u, fileID []byte, r int) bool {
	if len(u) < 16 {
		return false
	}
	want := userEntry(key, fileID, r)
	if r == 2 && bytes.Equal(want, u[:min(32, len(u))]) {
		return true
	}
	return bytes.Equal(want[:16], u[:16])
}

func keyXOR(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i, k := range key {
		out[i] = k ^ b
	}
	return out
}

// objectKey derives the key for one object: the document key, the low
// three bytes of the number, the low two of the generation and, for AES,
// the "sAlT" suffix. At most 16 bytes of the digest are used.
func objectKey(key []byte, objNum, gen int, useAES bool) []byte {
	buf := append(bytes.Clone(key), byte(objNum), byte(objNum>>8), byte(objNum>>16), byte(gen), byte(gen>>8))
	if useAES {
		buf = append(buf, "sAlT"...)
	}
	sum := md5.Sum(buf)
	return sum[:min(len(key)+5, 16)]
}

// rc4XOR runs data through RC4. Every key reaching it is 5 to 16 bytes,
// which rc4.NewCipher always accepts.
func rc4XOR(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// aesEncrypt prefixes a random IV and pads with PKCS#5.
func aesEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(data)%aes.BlockSize
	out := make([]byte, aes.BlockSize+len(data)+pad)
	iv, body := out[:aes.BlockSize], out[aes.BlockSize:]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	copy(body, data)
	for i := len(data); i < len(body); i++ {
		body[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(body, body)
	return out, nil
}

func aesDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aes.BlockSize {
		return nil, errShortCiphertext
	}
	iv, body := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(body)%aes.BlockSize != 0 {
		return nil, errPartialBlock
	}
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errBadPadding
	}
	return out[:len(out)-pad], nil
}
