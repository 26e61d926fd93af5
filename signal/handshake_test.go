package signal

import (
	"testing"

	"github.com/HMasataka/sensorlink/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"structured string", `{"user_id":"42"}`, "42"},
		{"structured number", `{"user_id":42}`, "42"},
		{"fractional number", `{"user_id":42.50}`, "42.5"},
		{"integral float", `{"user_id":42.0}`, "42"},
		{"exponent", `{"user_id":1e3}`, "1000"},
		{"structured with extra fields", `{"user_id":"abc","client":"web"}`, "abc"},
		{"structured true", `{"user_id":true}`, "true"},
		{"legacy text", "Client connected: 42", "42"},
		{"legacy long id", "Client connected: 0012345", "0012345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentity([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIdentity_Rejects(t *testing.T) {
	frames := []string{
		`{"content":"hi"}`,
		`{}`,
		`{"user_id":""}`,
		`{"user_id":null}`,
		`{"user_id":false}`,
		`{"user_id":0}`,
		`{"user_id":0e5}`,
		`{"user_id":{"id":1}}`,
		`{"user_id":[1]}`,
		`["user_id"]`,
		`42`,
		`"Client connected: 42"`,
		"Client connected: abc",
		"Client connected: ",
		"client connected: 42",
		"Client connected: 42 ",
		"hello",
		"",
	}

	for _, frame := range frames {
		t.Run(frame, func(t *testing.T) {
			_, err := ParseIdentity([]byte(frame))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeHandshakeRejected))
		})
	}
}

func TestParseIdentity_StructuredNeverFallsBack(t *testing.T) {
	// Valid JSON whose text would satisfy the legacy pattern once decoded.
	_, err := ParseIdentity([]byte(`{"message":"Client connected: 42"}`))
	assert.Error(t, err)
}
