package signal

import (
	"encoding/json"
	"regexp"

	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/pkg/errors"
)

// RejectReason is the close reason sent with code 1008 when the first frame
// carries no usable identity.
const RejectReason = "Initial message must contain valid user_id"

var legacyPattern = regexp.MustCompile(`^Client connected: (\d+)$`)

// ParseIdentity resolves the identity carried by the first frame of a
// connection. Valid JSON is only ever read as a structured frame; the legacy
// text pattern is tried only when the frame is not JSON at all.
func ParseIdentity(frame []byte) (string, error) {
	if json.Valid(frame) {
		return parseStructured(frame)
	}
	return parseLegacy(frame)
}

func parseStructured(frame []byte) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(frame, &payload); err != nil {
		return "", errors.HandshakeRejected("structured frame is not an object")
	}

	raw, ok := payload["user_id"]
	if !ok {
		return "", errors.HandshakeRejected("user_id missing")
	}

	identity, ok := domain.IdentityFromJSON(raw)
	if !ok {
		return "", errors.HandshakeRejected("user_id empty or not a scalar")
	}
	return identity, nil
}

func parseLegacy(frame []byte) (string, error) {
	match := legacyPattern.FindSubmatch(frame)
	if match == nil {
		return "", errors.HandshakeRejected("frame matches no accepted encoding")
	}
	return string(match[1]), nil
}
