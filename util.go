package cardano

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const (
	KeyHashSize = 28
	TxHashSize  = 32
)

type HexString string

func (h HexString) Bytes() []byte {
	b, _ := hex.DecodeString(string(h))
	return b
}

type HexBytes []byte

func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *HexBytes) UnmarshalJSON(data []byte) (err error) {
	var s string
	if err = json.Unmarshal(data, &s); err != nil {
		return errors.WithStack(err)
	}
	*h, err = hex.DecodeString(s)
	return errors.WithStack(err)
}

func Blake2bSum224(data []byte) (hash []byte, err error) {
	h, err := blake2b.New(KeyHashSize, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to create blake2b hash")
		return
	}
	h.Write(data)
	return h.Sum(nil), nil
}

func Blake2bSum256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// ChunkString splits s into pieces of at most size bytes, never splitting a
// multi-byte rune.
func ChunkString(s string, size int) (chunks []string) {
	if size <= 0 {
		return []string{s}
	}
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	return append(chunks, s)
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Msgf("error checking file: %v", err)
		}
		return false
	}
	return !info.IsDir()
}

// CborEncoder produces core deterministic CBOR so that hashes over encoded
// maps are reproducible.
var CborEncoder, _ = cbor.CoreDetEncOptions().EncMode()

var StandardCborDecoder, _ = cbor.DecOptions{
	UTF8: cbor.UTF8DecodeInvalid,
}.DecMode()
