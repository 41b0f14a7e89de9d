package monitor

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/7331/binance-live-price-alerts/types"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, "", Summarize(nil, 3))

	err := types.ConnectionError("read", errors.New("connection reset by peer"))
	summary := Summarize(err, 2)

	lines := strings.Split(summary, "\n")
	assert.Equal(t, "ConnectionError: read: connection reset by peer", lines[0])
	assert.Len(t, lines, 3)
	for _, line := range lines[1:] {
		assert.True(t, strings.HasPrefix(line, "\tat "), line)
		assert.Contains(t, line, ".go:")
	}
}

func TestSummarize_WithoutStack(t *testing.T) {
	err := &types.Error{Kind: types.KindProtocol, Op: "subscribe"}
	assert.Equal(t, "ProtocolError: subscribe", Summarize(err, 3))
}
