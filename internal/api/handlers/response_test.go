package handlers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Run("Short Message Unchanged", func(t *testing.T) {
		assert.Equal(t, "connection refused", truncate("connection refused", healthErrorLimit))
	})

	t.Run("Cuts On Rune Boundary", func(t *testing.T) {
		msg := strings.Repeat("a", 199) + "数据库连接失败"
		got := truncate(msg, healthErrorLimit)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, healthErrorLimit, utf8.RuneCountInString(got))
		assert.Equal(t, strings.Repeat("a", 199)+"数", got)
	})
}
