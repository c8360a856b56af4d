package lspclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCode(t *testing.T) {
	tests := []struct {
		raw      string
		wantCode int
		wantID   string
	}{
		{raw: ``, wantCode: 0, wantID: ""},
		{raw: `null`, wantCode: 0, wantID: ""},
		{raw: `2322`, wantCode: 2322, wantID: "2322"},
		{raw: `"E0308"`, wantCode: 0, wantID: "E0308"},
		{raw: `"unused-import"`, wantCode: 0, wantID: "unused-import"},
		{raw: `{"value":1}`, wantCode: 0, wantID: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			code, id := decodeCode(json.RawMessage(tt.raw))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
