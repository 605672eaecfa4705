package dc09

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewBlockRejectsBadKeyLength(t *testing.T) {
	_, err := NewBlock("1234", []byte("tooshort"), nil, nil)
	require.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestNewBlockAcceptsNilAndValidKeys(t *testing.T) {
	_, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)

	_, err = NewBlock("1234", make([]byte, 16), nil, nil)
	require.NoError(t, err)

	_, err = NewBlock("1234", make([]byte, 32), nil, nil)
	require.NoError(t, err)
}

func TestBuildRejectsUnterminatedPayload(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	_, err = b.Build(1, TypeNULL, "no-closing-bracket")
	require.ErrorIs(t, err, ErrPayloadUnterminated)
}

func TestBuildPlaintextShape(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	frame, err := b.Build(7, TypeNULL, "]")
	require.NoError(t, err)

	s := string(frame)
	require.True(t, strings.HasPrefix(s, "\n"))
	require.True(t, strings.HasSuffix(s, "\r"))
	require.Contains(t, s, `"NULL"0007#1234[]`)
}

func TestBuildIncludesReceiverAndLine(t *testing.T) {
	rcv, line := 1, 2
	b, err := NewBlock("1234", nil, &rcv, &line)
	require.NoError(t, err)
	frame, err := b.Build(1, TypeNULL, "]")
	require.NoError(t, err)
	require.Contains(t, string(frame), "R1L2")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	b, err := NewBlock("1234", make([]byte, 16), nil, nil)
	require.NoError(t, err)
	b.Now = fixedNow(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	ciphertext, err := b.encrypt("hello]")
	require.NoError(t, err)
	require.Zero(t, len(ciphertext)%16, "ciphertext must be a whole number of AES blocks")

	plaintext, err := b.decrypt(ciphertext)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(plaintext), "hello]_12:00:00,03-01-2024"))
}

func TestBuildKeyedProducesEncryptedMarker(t *testing.T) {
	b, err := NewBlock("1234", make([]byte, 16), nil, nil)
	require.NoError(t, err)
	frame, err := b.Build(3, TypeSIADCS, "]")
	require.NoError(t, err)
	require.Contains(t, string(frame), `"*SIA-DCS"`)
}

// buildPlainAck assembles a valid, unencrypted acknowledgement frame for
// test purposes: "<status>"<msgNr hex><#account>[<tail>, framed and CRC'd
// exactly as a real receiver's reply would be.
func buildPlainAck(status Status, msgNr uint16, account, tail string) []byte {
	body := []byte(fmt.Sprintf(`"%s"%04X#%s[%s`, status, msgNr, account, tail))
	crc := CRC16(body)
	return []byte(fmt.Sprintf("\n%04X%04X%s\r", crc, len(body), body))
}

func TestParseAckPlaintextNoTimestamp(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	frame := buildPlainAck(StatusACK, 5, "1234", "]")

	status, offset, err := b.ParseAck(5, frame)
	require.NoError(t, err)
	require.Equal(t, StatusACK, status)
	require.Nil(t, offset)
}

func TestParseAckPlaintextWithTimestampOffset(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	b.Now = fixedNow(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	// Receiver clock is 30 seconds ahead of ours.
	tail := "]_12:00:30,03-01-2024"
	frame := buildPlainAck(StatusNAK, 9, "1234", tail)

	status, offset, err := b.ParseAck(9, frame)
	require.NoError(t, err)
	require.Equal(t, StatusNAK, status)
	require.NotNil(t, offset)
	require.Equal(t, 30, *offset)
}

func TestParseAckNAKAllowsMessageNumberMismatch(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	frame := buildPlainAck(StatusNAK, 42, "1234", "]")

	status, _, err := b.ParseAck(1, frame)
	require.NoError(t, err)
	require.Equal(t, StatusNAK, status)
}

func TestParseAckRejectsMessageNumberMismatchOutsideNAK(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	frame := buildPlainAck(StatusACK, 42, "1234", "]")

	_, _, err = b.ParseAck(1, frame)
	require.ErrorIs(t, err, ErrMalformedAck)
}

func TestParseAckRejectsBadCRC(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	frame := buildPlainAck(StatusACK, 1, "1234", "]")
	frame[1] ^= 0xFF // corrupt the CRC field

	_, _, err = b.ParseAck(1, frame)
	require.ErrorIs(t, err, ErrMalformedAck)
}

func TestParseAckRejectsUnknownStatus(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	frame := buildPlainAck("XXX", 1, "1234", "]")

	_, _, err = b.ParseAck(1, frame)
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestParseAckRejectsTooShortFrame(t *testing.T) {
	b, err := NewBlock("1234", nil, nil, nil)
	require.NoError(t, err)
	_, _, err = b.ParseAck(1, []byte("\n0000"))
	require.ErrorIs(t, err, ErrMalformedAck)
}

func TestParseAckEncryptedRoundTrip(t *testing.T) {
	b, err := NewBlock("1234", make([]byte, 16), nil, nil)
	require.NoError(t, err)
	b.Now = fixedNow(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	ciphertext, err := b.encrypt("]")
	require.NoError(t, err)

	body := []byte(fmt.Sprintf(`"*%s"%04X#%s[%s`, StatusACK, 11, "1234", strings.ToUpper(hex.EncodeToString(ciphertext))))
	crc := CRC16(body)
	frame := []byte(fmt.Sprintf("\n%04X%04X%s\r", crc, len(body), body))

	status, offset, err := b.ParseAck(11, frame)
	require.NoError(t, err)
	require.Equal(t, StatusACK, status)
	require.NotNil(t, offset)
	require.Equal(t, 0, *offset)
}
