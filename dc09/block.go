package dc09

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// zeroIV is the sixteen-byte all-zero initialization vector the DC-09
// protocol mandates for its AES-CBC framing. Each message is independently
// encrypted; no ack of IV state is ever exchanged. Do not change this
// without a protocol revision.
var zeroIV = make([]byte, aes.BlockSize)

// fillerExcluded holds the three bytes the random filler must never
// produce, so they cannot be confused with framing delimiters.
var fillerExcluded = map[byte]bool{'[': true, ']': true, '|': true}

// Block frames and parses SIA DC-09 blocks for one destination. It holds
// the per-path identity (account, optional receiver/line, optional AES
// key) and the receiver clock offset learned from prior acknowledgements.
type Block struct {
	Account  string
	Key      []byte
	Receiver *int
	Line     *int
	Offset   int // seconds, signed; added to UTC "now" when timestamping

	// Now overrides time.Now for deterministic tests. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

// NewBlock validates key length (AES-128/256 only) and returns a ready
// Block. key may be nil for a plaintext path.
func NewBlock(account string, key []byte, receiver, line *int) (*Block, error) {
	if key != nil && len(key) != 16 && len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}
	return &Block{Account: account, Key: key, Receiver: receiver, Line: line}, nil
}

func (b *Block) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

// SetOffset updates the receiver clock offset, as learned from a NAK or a
// successfully-parsed ack carrying a timestamp.
func (b *Block) SetOffset(seconds int) {
	b.Offset = seconds
}

// Build constructs a DC-09 block: "<TYPE>"<NNNN>[R<rcv>][L<line>]#<account>[<payload>
// framed as <LF><CRC4><LEN4><body><CR>. payload must already end with ']'.
// If Key is set, the payload is AES-CBC encrypted before framing.
func (b *Block) Build(msgNr uint16, typ Type, payload string) ([]byte, error) {
	if !strings.HasSuffix(payload, "]") {
		return nil, ErrPayloadUnterminated
	}

	var body strings.Builder
	if b.Key == nil {
		body.WriteString(fmt.Sprintf(`"%s"`, typ))
	} else {
		body.WriteString(fmt.Sprintf(`"*%s"`, typ))
	}
	body.WriteString(fmt.Sprintf("%04X", msgNr))
	if b.Receiver != nil {
		body.WriteString(fmt.Sprintf("R%X", *b.Receiver))
	}
	if b.Line != nil {
		body.WriteString(fmt.Sprintf("L%X", *b.Line))
	}
	body.WriteString("#")
	body.WriteString(b.Account)
	body.WriteString("[")

	if b.Key == nil {
		body.WriteString(payload)
	} else {
		toEncrypt := payload
		if typ != TypeNULL {
			toEncrypt = "|" + payload
		}
		ciphertext, err := b.encrypt(toEncrypt)
		if err != nil {
			return nil, err
		}
		body.WriteString(strings.ToUpper(hex.EncodeToString(ciphertext)))
	}

	bodyBytes := []byte(body.String())
	crc := CRC16(bodyBytes)
	frame := fmt.Sprintf("\n%04X%04X%s\r", crc, len(bodyBytes), bodyBytes)
	return []byte(frame), nil
}

// encrypt pads data per the DC-09 filler scheme, appends the receiver-
// adjusted timestamp suffix, and AES-CBC encrypts with a zero IV.
//
// pad = (len(data)+21) mod 16; (17-pad) random filler bytes are prepended
// so that filler + data + 20-byte timestamp suffix is always a multiple
// of 16 bytes: (17-pad) + len(data) + 20 = (len(data)+21) - pad + 16.
func (b *Block) encrypt(data string) ([]byte, error) {
	pad := (len(data) + 21) % 16
	fillerLen := 17 - pad

	filler, err := randomFiller(fillerLen)
	if err != nil {
		return nil, err
	}

	ts := b.now().Add(time.Duration(b.Offset) * time.Second)
	suffix := "_" + ts.Format("15:04:05,01-02-2006")

	plaintext := filler + data + suffix

	block, err := aes.NewCipher(b.Key)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(ciphertext, []byte(plaintext))
	return ciphertext, nil
}

func (b *Block) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("dc09: ciphertext length %d not a multiple of %d", len(ciphertext), aes.BlockSize)
	}
	block, err := aes.NewCipher(b.Key)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// randomFiller draws n bytes uniformly from ASCII 20..125, excluding
// '[', ']' and '|', to provide message-to-message ciphertext diversity.
func randomFiller(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		v, err := rand.Int(rand.Reader, big.NewInt(126-20))
		if err != nil {
			return "", err
		}
		c := byte(v.Int64()) + 20
		if fillerExcluded[c] {
			continue
		}
		out = append(out, c)
	}
	return string(out), nil
}

// ParseAck validates and decodes a received acknowledgement frame built by
// Build's framing rules. expectedMsgNr must match the frame's message
// number unless the status is NAK. The returned offset, when non-nil, is
// the receiver clock offset in whole seconds sniffed from a trailing
// "]_HH:MM:SS,MM-DD-YYYY" timestamp — present on NAKs (clock resync) and
// optionally on other statuses.
func (b *Block) ParseAck(expectedMsgNr uint16, frame []byte) (Status, *int, error) {
	answer := string(frame)
	alen := len(answer)
	if alen < 10 {
		return "", nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrMalformedAck, alen)
	}

	length, err := parseHex(answer[5:9])
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad length field: %v", ErrMalformedAck, err)
	}
	if length != alen-10 {
		return "", nil, fmt.Errorf("%w: length field %d does not match body length %d", ErrMalformedAck, length, alen-10)
	}

	body := answer[9 : alen-1]
	crc := CRC16([]byte(body))
	declaredCRC, err := parseHex(answer[1:5])
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad CRC field: %v", ErrMalformedAck, err)
	}
	if int(crc) != declaredCRC {
		return "", nil, fmt.Errorf("%w: CRC mismatch", ErrMalformedAck)
	}

	encrypted := answer[10] == '*'
	var mnr int
	var status Status
	if encrypted {
		mnr, err = parseHex(answer[15:19])
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad message number: %v", ErrMalformedAck, err)
		}
		status = Status(answer[11:14])
	} else {
		mnr, err = parseHex(answer[14:18])
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad message number: %v", ErrMalformedAck, err)
		}
		status = Status(answer[10:13])
	}
	if !validStatus(status) {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	if mnr != int(expectedMsgNr) && status != StatusNAK {
		return "", nil, fmt.Errorf("%w: message number %d does not match expected %d", ErrMalformedAck, mnr, expectedMsgNr)
	}

	tail := answer
	if encrypted {
		bracket := strings.IndexByte(answer, '[')
		if bracket < 0 || bracket+1 > alen-1 {
			return "", nil, fmt.Errorf("%w: no payload bracket in encrypted ack", ErrMalformedAck)
		}
		ct, err := hex.DecodeString(answer[bracket+1 : alen-1])
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad ciphertext: %v", ErrMalformedAck, err)
		}
		plaintext, err := b.decrypt(ct)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedAck, err)
		}
		if len(plaintext) < 21 {
			return "", nil, fmt.Errorf("%w: decrypted ack shorter than 21 bytes", ErrMalformedAck)
		}
		tail = string(plaintext[len(plaintext)-21:])
	}

	var tm string
	switch {
	case len(tail) > 22 && tail[len(tail)-22:len(tail)-20] == "]_":
		tm = tail[len(tail)-20 : len(tail)-1]
	case len(tail) > 20 && tail[len(tail)-21:len(tail)-19] == "]_":
		tm = tail[len(tail)-19:]
	}

	var offset *int
	if tm != "" {
		receiverTime, err := time.Parse("15:04:05,01-02-2006", tm)
		if err == nil {
			now := b.now()
			delta := int(receiverTime.Sub(now) / time.Second)
			offset = &delta
		}
	}

	return status, offset, nil
}

func parseHex(s string) (int, error) {
	var v int
	_, err := fmt.Sscanf(s, "%x", &v)
	return v, err
}
