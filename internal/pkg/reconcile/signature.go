package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance is how far an event timestamp may drift from
// server time before the signature is rejected as a replay.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifyEventSignature checks a processor signature header of the form
// "t=<unix>,v1=<hex hmac>" against the raw request body. The signed string
// is "<t>.<body>" with an HMAC-SHA256 over the shared webhook secret.
func VerifyEventSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	return verifyEventSignatureAt(payload, signatureHeader, webhookSecret, time.Now(), DefaultSignatureTolerance)
}

func verifyEventSignatureAt(payload []byte, signatureHeader, webhookSecret string, now time.Time, tolerance time.Duration) bool {
	header := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if header == "" || secret == "" {
		return false
	}

	var timestamp int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(kv[1]))
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return false
	}
	if tolerance > 0 {
		drift := now.Sub(time.Unix(timestamp, 0))
		if drift > tolerance || drift < -tolerance {
			return false
		}
	}

	signed := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return true
		}
	}
	return false
}

// SignEventPayload produces a signature header for the given payload. Used
// by tests and the local event replay tooling.
func SignEventPayload(payload []byte, webhookSecret string, at time.Time) string {
	signed := fmt.Sprintf("%d.%s", at.Unix(), payload)
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
